package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Decentr-net/logrus/sentry"

	"github.com/Decentr-net/agora/internal/api/health"
	"github.com/Decentr-net/agora/internal/auth/cognito"
	"github.com/Decentr-net/agora/internal/blob/s3"
	"github.com/Decentr-net/agora/internal/inflight"
	"github.com/Decentr-net/agora/internal/livesync"
	mm "github.com/Decentr-net/agora/internal/middleware"
	"github.com/Decentr-net/agora/internal/server"
	"github.com/Decentr-net/agora/internal/service"
	"github.com/Decentr-net/agora/internal/service/impl"
	"github.com/Decentr-net/agora/internal/storage/postgres"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host           string        `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port           int           `long:"http.port" env:"HTTP_PORT" default:"8080" description:"port to listen on for insecure connections, defaults to a random value"`
	RequestTimeout time.Duration `long:"http.request-timeout" env:"HTTP_REQUEST_TIMEOUT" default:"45s" description:"request processing timeout"`
	MaxUploadSize  int64         `long:"http.max-upload-size" env:"HTTP_MAX_UPLOAD_SIZE" default:"104857600" description:"maximal size of uploaded media in bytes"`

	MutationRate  float64 `long:"mutation.rate" env:"MUTATION_RATE" default:"5" description:"allowed mutations per second per user, 0 disables limiting"`
	MutationBurst int     `long:"mutation.burst" env:"MUTATION_BURST" default:"10" description:"mutations burst per user"`

	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`
	PostgresMigrations         string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`
	PostgresListen             bool   `long:"postgres.listen" env:"POSTGRES_LISTEN" description:"receive collection changes from postgres notifications, required when several instances are running"`

	Redis         string        `long:"redis" env:"REDIS" default:"localhost:6379" description:"comma separated redis addresses"`
	RedisPassword string        `long:"redis.password" env:"REDIS_PASSWORD" description:"redis password"`
	ProfileTTL    time.Duration `long:"redis.profile-ttl" env:"REDIS_PROFILE_TTL" default:"1m" description:"profile response cache ttl"`

	S3Region    string `long:"s3.region" env:"S3_REGION" default:"us-east-1" description:"s3 region"`
	S3Bucket    string `long:"s3.bucket" env:"S3_BUCKET" default:"agora" description:"s3 bucket"`
	S3Endpoint  string `long:"s3.endpoint" env:"S3_ENDPOINT" description:"s3 endpoint, e.g. minio address"`
	S3PublicURL string `long:"s3.public-url" env:"S3_PUBLIC_URL" description:"public url prefix of uploaded media"`

	CognitoRegion string `long:"cognito.region" env:"COGNITO_REGION" default:"us-east-1" description:"cognito region"`
	CognitoPoolID string `long:"cognito.pool-id" env:"COGNITO_POOL_ID" description:"cognito user pool id, used by health check"`

	SnapshotLimit uint16 `long:"livesync.snapshot-limit" env:"LIVESYNC_SNAPSHOT_LIMIT" default:"0" description:"maximal count of items in snapshot, 0 means whole collection"`

	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
	LogJSON   bool   `long:"log.json" env:"LOG_JSON" description:"write logs in json"`
	SentryDSN string `long:"sentry.dsn" env:"SENTRY_DSN" description:"sentry dsn"`
}{}

var errTerminated = errors.New("terminated")

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Agora"
	parser.LongDescription = "Agora: social feed service"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)
	if opts.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	logrus.Info("service started")

	if opts.SentryDSN != "" {
		hook, err := sentry.NewHook(sentry.Options{
			Dsn:              opts.SentryDSN,
			AttachStacktrace: true,
			Release:          health.GetVersion(),
			ServerName:       "agora",
		}, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel)

		if err != nil {
			logrus.WithError(err).Fatal("failed to init sentry")
		}

		logrus.AddHook(hook)
	} else {
		logrus.Info("empty sentry dsn")
		logrus.Warn("skip sentry initialization")
	}

	ctx, cancel := context.WithCancel(context.Background())

	db := mustGetDB()
	st := postgres.New(db)

	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    strings.Split(opts.Redis, ","),
		Password: opts.RedisPassword,
	})

	bs, err := s3.New(s3.Config{
		Region:    opts.S3Region,
		Bucket:    opts.S3Bucket,
		Endpoint:  opts.S3Endpoint,
		PublicURL: opts.S3PublicURL,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create s3 store")
	}

	a, err := cognito.New(ctx, opts.CognitoRegion, opts.CognitoPoolID)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create cognito authenticator")
	}

	hub := livesync.NewHub(st, gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}), opts.SnapshotLimit)

	checks := []health.Check{
		health.NamedFunc("postgres", db.PingContext),
		health.NamedFunc("redis", func(ctx context.Context) error { return rc.Ping(ctx).Err() }),
		health.Named("s3", bs),
		health.Named("cognito", a),
		health.Named("livesync", hub),
	}

	// a single instance notifies the hub directly, otherwise changes come from postgres
	var (
		notifier service.Notifier = hub
		listener *livesync.Listener
	)
	if opts.PostgresListen {
		listener = livesync.NewListener(opts.Postgres, hub)
		notifier = nil
		checks = append(checks, health.Named("listener", listener))
	}

	svc := impl.New(st, bs, inflight.NewRedisGuard(rc), notifier)

	r := chi.NewMux()
	r.Get("/health", health.Handler(5*time.Second, checks...))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		server.SetupRouter(r, svc, a, hub, mm.NewRedisStorage(rc), server.Config{
			Timeout:         opts.RequestTimeout,
			MaxUploadSize:   opts.MaxUploadSize,
			ProfileCacheTTL: opts.ProfileTTL,
			MutationRate:    opts.MutationRate,
			MutationBurst:   opts.MutationBurst,
		})
	})

	srv := http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}

	gr, gctx := errgroup.WithContext(ctx)
	gr.Go(func() error {
		return hub.Run(gctx)
	})
	if listener != nil {
		gr.Go(func() error {
			select {
			case <-hub.Ready():
			case <-gctx.Done():
				return nil
			}
			return listener.Run(gctx)
		})
	}
	gr.Go(func() error {
		select {
		case <-hub.Ready():
		case <-gctx.Done():
			return nil
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		select {
		case s := <-sigs:
			logrus.Infof("terminating by %s signal", s)
		case <-gctx.Done():
		}

		cancel()

		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()

		if err := srv.Shutdown(sctx); err != nil {
			logrus.WithError(err).Error("failed to shutdown http server")
		}

		if err := rc.Close(); err != nil {
			logrus.WithError(err).Error("failed to close redis client")
		}

		return errTerminated
	})

	logrus.Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) {
		logrus.WithError(err).Fatal("service unexpectedly closed")
	}
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}
	db.SetMaxOpenConns(opts.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(opts.PostgresMaxIdleConnections)

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch v, d, err := migrator.Version(); err {
	case nil:
		logrus.Infof("database version %d with dirty state %t", v, d)
	case migrate.ErrNilVersion:
		logrus.Info("database version: nil")
	default:
		logrus.WithError(err).Fatal("failed to get version")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}
