// Package config loads service configuration from the environment. A local
// .env file is honoured when present so development does not require
// exporting variables by hand.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full configuration of the API service.
type Config struct {
	Addr            string        `env:"ASSETFLOW_ADDR" envDefault:":8080"`
	PostgresDSN     string        `env:"ASSETFLOW_PG_DSN"`
	AuthSecret      string        `env:"ASSETFLOW_AUTH_SECRET"`
	TokenTTL        time.Duration `env:"ASSETFLOW_TOKEN_TTL" envDefault:"12h"`
	ShutdownTimeout time.Duration `env:"ASSETFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimitPerSec int           `env:"ASSETFLOW_RATE_LIMIT_PER_SEC" envDefault:"50"`
	RateLimitBurst  int           `env:"ASSETFLOW_RATE_LIMIT_BURST" envDefault:"100"`
	MaxBodyBytes    int64         `env:"ASSETFLOW_MAX_BODY_BYTES" envDefault:"1048576"`
	MigrationsDir   string        `env:"ASSETFLOW_MIGRATIONS_DIR" envDefault:"migrations"`
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	// Missing .env is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RateLimitPerSec <= 0 || cfg.RateLimitBurst <= 0 {
		return Config{}, fmt.Errorf("rate limit values must be > 0")
	}
	return cfg, nil
}
