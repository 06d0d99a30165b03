package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %s", cfg.Addr)
	}
	if cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("token ttl = %s", cfg.TokenTTL)
	}
	if cfg.RateLimitPerSec != 50 || cfg.RateLimitBurst != 100 {
		t.Fatalf("rate limit = %d/%d", cfg.RateLimitPerSec, cfg.RateLimitBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ASSETFLOW_ADDR", ":9999")
	t.Setenv("ASSETFLOW_TOKEN_TTL", "30m")
	t.Setenv("ASSETFLOW_PG_DSN", "postgres://localhost/assetflow")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" || cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PostgresDSN != "postgres://localhost/assetflow" {
		t.Fatalf("dsn = %s", cfg.PostgresDSN)
	}
}

func TestLoadRejectsZeroRateLimit(t *testing.T) {
	t.Setenv("ASSETFLOW_RATE_LIMIT_PER_SEC", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero rate limit")
	}
}
