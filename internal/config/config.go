// Package config loads prizedraw settings from defaults, an optional TOML
// file and PRIZEDRAW_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PRIZEDRAW_"

type Config struct {
	HTTPAddr       string        `toml:"http_addr" env:"HTTP_ADDR"`
	DatabaseDriver string        `toml:"database_driver" env:"DATABASE_DRIVER"`
	DatabaseURL    string        `toml:"database_url" env:"DATABASE_URL"`
	Timezone       string        `toml:"timezone" env:"TIMEZONE"`
	SweepInterval  time.Duration `toml:"sweep_interval" env:"SWEEP_INTERVAL"`
	Verbose        bool          `toml:"verbose" env:"VERBOSE"`
	LogFile        string        `toml:"log_file" env:"LOG_FILE"`
	GinMode        string        `toml:"gin_mode" env:"GIN_MODE"`
	AllowedOrigins []string      `toml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// Default returns the settings used when nothing else is configured:
// a local SQLite file, UTC scheduling and no in-process sweeper.
func Default() Config {
	return Config{
		HTTPAddr:       ":8080",
		DatabaseDriver: "sqlite",
		DatabaseURL:    "prizedraw.db",
		Timezone:       "UTC",
		GinMode:        "release",
		AllowedOrigins: []string{"*"},
	}
}

// Load builds a Config. path may be empty, in which case no file is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database_driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database_url is required")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("gin_mode must be debug, release or test, got %q", c.GinMode)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must not be negative, got %s", c.SweepInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. An empty value means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
