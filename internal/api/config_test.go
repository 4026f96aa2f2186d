package api

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"KB_LISTEN_ADDR", "KB_SERVER_DB_PATH", "KB_RATE_LIMIT_WRITE", "KB_REDIS_ADDR", "KB_IDEMPOTENCY_TTL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	if cfg.ListenAddr != ":8080" || cfg.RateLimitWrite != 120 || cfg.RateLimitRead != 600 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.IdempotencyTTL != 24*time.Hour || cfg.RedisAddr != "" {
		t.Errorf("unexpected idempotency defaults: %+v", cfg)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("KB_LISTEN_ADDR", ":9999")
	t.Setenv("KB_SERVER_DB_PATH", "/tmp/kb.db")
	t.Setenv("KB_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("KB_LOG_FORMAT", "text")
	t.Setenv("KB_RATE_LIMIT_WRITE", "7")
	t.Setenv("KB_RATE_LIMIT_READ", "-1")
	t.Setenv("KB_REDIS_ADDR", " localhost:6379 ")
	t.Setenv("KB_IDEMPOTENCY_TTL", "2d")

	cfg := LoadConfig()
	if cfg.ListenAddr != ":9999" || cfg.ServerDBPath != "/tmp/kb.db" || cfg.LogFormat != "text" {
		t.Errorf("string settings: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout: %v", cfg.ShutdownTimeout)
	}
	if cfg.RateLimitWrite != 7 || cfg.RateLimitRead != 600 {
		t.Errorf("rate limits: write=%d read=%d", cfg.RateLimitWrite, cfg.RateLimitRead)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.IdempotencyTTL != 48*time.Hour {
		t.Errorf("redis settings: %q %v", cfg.RedisAddr, cfg.IdempotencyTTL)
	}
}

func TestParseDaysDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"0d", 0},
		{"nope", 0},
	}
	for _, tt := range tests {
		if got := parseDaysDuration(tt.in); got != tt.want {
			t.Errorf("parseDaysDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
