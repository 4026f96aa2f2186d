// Package config stores the kb client settings in ~/.config/kb/config.json.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	configFile = "config.json"
	lockFile   = "config.json.lock"

	DefaultServerURL       = "http://localhost:8080"
	DefaultRefreshInterval = 30 * time.Second
	DefaultRetries         = 2
)

// lockTimeout bounds how long a writer waits for another kb process.
var lockTimeout = 5 * time.Second

// Config is the persisted client configuration.
type Config struct {
	ServerURL       string `json:"server_url,omitempty"`
	APIKey          string `json:"api_key,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
	RefreshInterval string `json:"refresh_interval,omitempty"` // Go duration, TUI refresh
	Retries         *int   `json:"retries,omitempty"`          // resends of a failed position batch
}

// Dir returns the config directory: $KB_CONFIG_DIR, or ~/.config/kb.
func Dir() (string, error) {
	if v := os.Getenv("KB_CONFIG_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "kb"), nil
}

// Load reads the config file in dir. A missing file yields an empty Config.
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, configFile))
}

// Update loads, modifies and saves the config while holding the file lock.
func Update(dir string, fn func(*Config) error) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock config: timed out after %s", lockTimeout)
	}
	defer lock.Unlock()

	cfg, err := Load(dir)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return Save(dir, cfg)
}

// Set changes one setting by its json key.
func Set(dir, key, value string) error {
	return Update(dir, func(cfg *Config) error {
		switch key {
		case "server_url":
			cfg.ServerURL = strings.TrimRight(value, "/")
		case "api_key":
			cfg.APIKey = value
		case "project_id":
			cfg.ProjectID = value
		case "refresh_interval":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("refresh_interval: %w", err)
			}
			cfg.RefreshInterval = value
		case "retries":
			var n int
			if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 {
				return fmt.Errorf("retries: want a non-negative integer, got %q", value)
			}
			cfg.Retries = &n
		default:
			return fmt.Errorf("unknown config key %q (want one of %s)", key, strings.Join(Keys, ", "))
		}
		return nil
	})
}

// Keys lists the settable config keys.
var Keys = []string{"server_url", "api_key", "project_id", "refresh_interval", "retries"}

// Settings is the effective configuration after defaults and environment
// overrides are applied.
type Settings struct {
	ServerURL       string
	APIKey          string
	ProjectID       string
	RefreshInterval time.Duration
	Retries         int
}

// Resolve merges cfg with defaults. Environment wins over the file:
// KB_SERVER_URL, KB_API_KEY, KB_PROJECT.
func Resolve(cfg *Config) Settings {
	s := Settings{
		ServerURL:       DefaultServerURL,
		APIKey:          cfg.APIKey,
		ProjectID:       cfg.ProjectID,
		RefreshInterval: DefaultRefreshInterval,
		Retries:         DefaultRetries,
	}
	if cfg.ServerURL != "" {
		s.ServerURL = cfg.ServerURL
	}
	if d, err := time.ParseDuration(cfg.RefreshInterval); err == nil && d > 0 {
		s.RefreshInterval = d
	}
	if cfg.Retries != nil {
		s.Retries = *cfg.Retries
	}

	if v := os.Getenv("KB_SERVER_URL"); v != "" {
		s.ServerURL = v
	}
	if v := os.Getenv("KB_API_KEY"); v != "" {
		s.APIKey = v
	}
	if v := os.Getenv("KB_PROJECT"); v != "" {
		s.ProjectID = v
	}
	s.ServerURL = strings.TrimRight(s.ServerURL, "/")
	return s
}

// MaskedKey shows only the start of an API key.
func MaskedKey(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:12] + strings.Repeat("*", 8)
}
