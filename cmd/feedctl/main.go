package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/agora/internal/client"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Config   string        `long:"config" env:"FEEDCTL_CONFIG" description:"config file, defaults to ~/.feedctl.yaml"`
	Server   string        `long:"server" env:"FEEDCTL_SERVER" description:"agora address"`
	Token    string        `long:"token" env:"FEEDCTL_TOKEN" description:"access token"`
	Timeout  time.Duration `long:"timeout" env:"FEEDCTL_TIMEOUT" description:"request timeout"`
	LogLevel string        `long:"log.level" env:"LOG_LEVEL" default:"warning" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
}{}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "feedctl"
	parser.LongDescription = "Command line client of Agora"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
		logrus.SetLevel(lvl)

		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	registerCommands(parser)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// newClient builds client from flags, environment and config file.
func newClient() (*client.Client, error) {
	path := opts.Config
	if path == "" {
		path = defaultConfigPath()
	}

	file, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	c := merge(opts.Server, opts.Token, opts.Timeout, file)

	return client.New(c.Server, c.Token, c.Timeout)
}

// signalContext is canceled on interruption.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case s := <-sigs:
			logrus.Infof("terminating by %s signal", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
