// Package config loads server settings from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration.
type Config struct {
	HTTPAddr            string        `env:"SIXROW_HTTP_ADDR" envDefault:":3001"`
	MaxGames            int           `env:"SIXROW_MAX_GAMES" envDefault:"100"`
	MaintenanceInterval time.Duration `env:"SIXROW_MAINTENANCE_INTERVAL" envDefault:"30s"`
	FinishedGrace       time.Duration `env:"SIXROW_FINISHED_GRACE" envDefault:"1m"`
	WaitingTTL          time.Duration `env:"SIXROW_WAITING_TTL" envDefault:"30m"`
	RateLimit           int           `env:"SIXROW_RATE_LIMIT" envDefault:"100"`
	AllowedOrigins      []string      `env:"SIXROW_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout     time.Duration `env:"SIXROW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	OTelEndpoint        string        `env:"SIXROW_OTEL_ENDPOINT"`
	OTelEnabled         bool          `env:"SIXROW_OTEL_ENABLED" envDefault:"true"`
	OTelSampleRatio     float64       `env:"SIXROW_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseConfig parses environment and flags into Config. Flags win.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.IntVar(&cfg.MaxGames, "max-games", cfg.MaxGames, "Maximum concurrent games (0 = unlimited)")
	fs.DurationVar(&cfg.MaintenanceInterval, "maintenance-interval", cfg.MaintenanceInterval, "How often expired games are swept")
	fs.DurationVar(&cfg.FinishedGrace, "finished-grace", cfg.FinishedGrace, "How long ended games stay visible")
	fs.DurationVar(&cfg.WaitingTTL, "waiting-ttl", cfg.WaitingTTL, "How long a game may wait for an opponent (0 = forever)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "HTTP requests per minute per client")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	fs.Float64Var(&cfg.OTelSampleRatio, "otel-sample-ratio", cfg.OTelSampleRatio, "Share of new traces recorded, 0 to 1")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	if c.MaxGames < 0 {
		return fmt.Errorf("max games must not be negative, got %d", c.MaxGames)
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance interval must be positive, got %s", c.MaintenanceInterval)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("otel sample ratio must be within [0, 1], got %g", c.OTelSampleRatio)
	}
	return nil
}
