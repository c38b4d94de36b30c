package main

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config holds all process configuration, parsed from environment
// variables (with .env loaded first for local development).
type Config struct {
	Port     string `env:"PORT" envDefault:"5175"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// StoreBackend selects the one authoritative progress store:
	// "sqlite" (default), "redis", or "memory" (no durability).
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"sqlite"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./data/fartopia.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// SaveRetries is the retry budget after a failed progress save.
	SaveRetries uint64 `env:"SAVE_RETRIES" envDefault:"2"`

	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	CookieName   string `env:"COOKIE_NAME" envDefault:"fartopia_player"`
	Production   bool   `env:"PRODUCTION" envDefault:"false"`
}

func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (want sqlite, redis, or memory)", c.StoreBackend)
	}
	if c.SaveRetries < 1 {
		return fmt.Errorf("SAVE_RETRIES must be at least 1")
	}
	return nil
}
