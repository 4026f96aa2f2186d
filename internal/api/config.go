package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the position service configuration, loaded from KB_* environment variables.
type Config struct {
	ListenAddr      string
	ServerDBPath    string
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	RateLimitWrite int // mutating item routes, per API key per minute (default: 120)
	RateLimitRead  int // everything else, per API key per minute (default: 600)

	RedisAddr      string        // enables Idempotency-Key dedup when set
	IdempotencyTTL time.Duration // how long a batch key is remembered (default: 24h)
}

// LoadConfig reads configuration from the environment, falling back to defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8080",
		ServerDBPath:    "./data/server.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
		RateLimitWrite:  120,
		RateLimitRead:   600,
		IdempotencyTTL:  24 * time.Hour,
	}

	if v := os.Getenv("KB_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("KB_SERVER_DB_PATH"); v != "" {
		cfg.ServerDBPath = v
	}
	if v := os.Getenv("KB_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("KB_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("KB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if n := envPositiveInt("KB_RATE_LIMIT_WRITE"); n > 0 {
		cfg.RateLimitWrite = n
	}
	if n := envPositiveInt("KB_RATE_LIMIT_READ"); n > 0 {
		cfg.RateLimitRead = n
	}
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("KB_REDIS_ADDR"))
	if v := os.Getenv("KB_IDEMPOTENCY_TTL"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.IdempotencyTTL = d
		}
	}

	return cfg
}

func envPositiveInt(name string) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// parseDaysDuration accepts "7d" style day counts as well as Go durations.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}
