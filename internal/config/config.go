// Package config defines the process configuration and its loading.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and REPLAY_ environment variables on top.
// - Errors are wrapped with this package's sentinels so callers can use errors.Is.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage backends understood by StoreBackend.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SessionsDir is where the csv backend keeps session files and frames.
	SessionsDir string `koanf:"sessions_dir"`

	// StoreBackend is csv or sqlite.
	StoreBackend string `koanf:"store_backend"`

	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// DefaultSpeed applies when a playback request names no speed.
	DefaultSpeed float64 `koanf:"default_speed"`

	// FrameIntervalMS is the frame sampling period. Zero disables sampling.
	FrameIntervalMS int `koanf:"frame_interval_ms"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// KeyAliases rewrites recorded key tokens during playback.
	KeyAliases map[string]string `koanf:"key_aliases"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		SessionsDir:       "sessions",
		StoreBackend:      BackendCSV,
		SQLitePath:        "sessions.db",
		DefaultSpeed:      1.0,
		FrameIntervalMS:   0,
		ShutdownTimeoutMS: 10_000,
		KeyAliases:        map[string]string{},
	}
}

// FrameInterval returns FrameIntervalMS as a duration.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// StoreLocation returns the path the selected backend opens.
func (c *Config) StoreLocation() string {
	if c.StoreBackend == BackendSQLite {
		return c.SQLitePath
	}
	return c.SessionsDir
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreBackend {
	case BackendCSV:
		if strings.TrimSpace(c.SessionsDir) == "" {
			return fmt.Errorf("%w: sessions_dir must not be empty", ErrInvalidConfig)
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	if !(c.DefaultSpeed > 0) {
		return fmt.Errorf("%w: default_speed must be positive", ErrInvalidConfig)
	}
	if c.FrameIntervalMS < 0 {
		return fmt.Errorf("%w: frame_interval_ms must not be negative", ErrInvalidConfig)
	}
	if c.ShutdownTimeoutMS <= 0 {
		return fmt.Errorf("%w: shutdown_timeout_ms must be positive", ErrInvalidConfig)
	}
	return nil
}
