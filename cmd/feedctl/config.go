package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

// config is a profile stored in ~/.feedctl.yaml.
type config struct {
	Server  string        `yaml:"server"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feedctl.yaml"
	}

	return filepath.Join(home, ".feedctl.yaml")
}

// loadConfig reads config file, missing file is not an error.
func loadConfig(path string) (config, error) {
	var c config

	data, err := ioutil.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return c, nil
}

// merge fills empty values from file config and then from defaults.
func merge(flagServer, flagToken string, flagTimeout time.Duration, file config) config {
	c := config{
		Server:  flagServer,
		Token:   flagToken,
		Timeout: flagTimeout,
	}

	if c.Server == "" {
		c.Server = file.Server
	}
	if c.Server == "" {
		c.Server = defaultServer
	}

	if c.Token == "" {
		c.Token = file.Token
	}

	if c.Timeout == 0 {
		c.Timeout = file.Timeout
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	return c
}
