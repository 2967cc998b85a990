// Package config loads worker configuration from TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the full worker configuration.
type Config struct {
	// WorkerID identifies this worker. Generated at startup if empty.
	WorkerID string `toml:"worker_id"`

	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	NATS      NATSConfig      `toml:"nats"`
	Lock      LockConfig      `toml:"lock"`
	Retry     RetryConfig     `toml:"retry"`
	Heartbeat HeartbeatConfig `toml:"heartbeat"`
	Archive   ArchiveConfig   `toml:"archive"`
}

// NATSConfig configures the broker connection.
type NATSConfig struct {
	// URL of the NATS server.
	URL string `toml:"url"`

	// Bucket is the JetStream key-value bucket for shared state.
	Bucket string `toml:"bucket"`
}

// LockConfig configures task lock leases.
type LockConfig struct {
	// TTL is the lease duration. Must exceed the worst-case duration of
	// a single plan step.
	TTL duration `toml:"ttl"`
}

// RetryConfig configures the backoff schedule.
type RetryConfig struct {
	BaseDelay   duration `toml:"base_delay"`
	MaxDelay    duration `toml:"max_delay"`
	MaxAttempts int      `toml:"max_attempts"`
}

// HeartbeatConfig configures liveness reporting.
type HeartbeatConfig struct {
	// Interval between heartbeats. A negative value such as "-1s"
	// disables heartbeats.
	Interval duration `toml:"interval"`
}

// ArchiveConfig configures the terminal task archive.
type ArchiveConfig struct {
	// Path of the SQLite database. Empty disables archiving.
	Path string `toml:"path"`
}

// duration wraps time.Duration for TOML decoding of strings like "30s".
type duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		NATS: NATSConfig{
			URL:    "nats://127.0.0.1:4222",
			Bucket: "taskwire",
		},
		Lock: LockConfig{
			TTL: duration(30 * time.Second),
		},
		Retry: RetryConfig{
			BaseDelay:   duration(time.Second),
			MaxDelay:    duration(time.Minute),
			MaxAttempts: 3,
		},
		Heartbeat: HeartbeatConfig{
			Interval: duration(5 * time.Second),
		},
	}
}

// Load reads a TOML config file and merges it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(content), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes TOML content over the defaults.
func Parse(content string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required", ErrInvalidConfig)
	}
	if c.NATS.Bucket == "" {
		return fmt.Errorf("%w: nats.bucket is required", ErrInvalidConfig)
	}
	if c.Lock.TTL.Duration() <= 0 {
		return fmt.Errorf("%w: lock.ttl must be positive", ErrInvalidConfig)
	}
	if c.Retry.BaseDelay.Duration() <= 0 {
		return fmt.Errorf("%w: retry.base_delay must be positive", ErrInvalidConfig)
	}
	if c.Retry.MaxDelay.Duration() < c.Retry.BaseDelay.Duration() {
		return fmt.Errorf("%w: retry.max_delay must be >= retry.base_delay", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}
