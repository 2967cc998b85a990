package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("default max_attempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Lock.TTL.Duration() != 30*time.Second {
		t.Errorf("default lock ttl = %v, want 30s", cfg.Lock.TTL.Duration())
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
worker_id = "w1"
log_level = "debug"

[nats]
url = "nats://broker:4222"
bucket = "orchestration"

[lock]
ttl = "45s"

[retry]
base_delay = "2s"
max_delay = "2m"
max_attempts = 5

[heartbeat]
interval = "10s"

[archive]
path = "/var/lib/taskwire/archive.db"
`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.WorkerID != "w1" || cfg.LogLevel != "debug" {
		t.Errorf("top-level fields: %+v", cfg)
	}
	if cfg.NATS.URL != "nats://broker:4222" || cfg.NATS.Bucket != "orchestration" {
		t.Errorf("nats section: %+v", cfg.NATS)
	}
	if cfg.Lock.TTL.Duration() != 45*time.Second {
		t.Errorf("lock.ttl = %v", cfg.Lock.TTL.Duration())
	}
	if cfg.Retry.BaseDelay.Duration() != 2*time.Second || cfg.Retry.MaxAttempts != 5 {
		t.Errorf("retry section: %+v", cfg.Retry)
	}
	if cfg.Archive.Path != "/var/lib/taskwire/archive.db" {
		t.Errorf("archive.path = %q", cfg.Archive.Path)
	}
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse(`
[retry]
max_attempts = 7
`)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("max_attempts = %d, want 7", cfg.Retry.MaxAttempts)
	}
	if cfg.NATS.URL != Default().NATS.URL {
		t.Errorf("nats.url lost its default: %q", cfg.NATS.URL)
	}
	if cfg.Retry.BaseDelay.Duration() != time.Second {
		t.Errorf("base_delay lost its default: %v", cfg.Retry.BaseDelay.Duration())
	}
}

func TestValidation(t *testing.T) {
	bad := []string{
		`[nats]
url = ""`,
		`[lock]
ttl = "0s"`,
		`[retry]
max_attempts = 0`,
		`[retry]
base_delay = "10s"
max_delay = "1s"`,
	}
	for _, content := range bad {
		if _, err := Parse(content); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Parse(%q) = %v, want ErrInvalidConfig", content, err)
		}
	}
}

func TestParseBadDuration(t *testing.T) {
	if _, err := Parse(`
[lock]
ttl = "not a duration"
`); err == nil {
		t.Error("Parse accepted an invalid duration")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.toml")
	content := `
worker_id = "loaded"
[nats]
url = "nats://example:4222"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.WorkerID != "loaded" || cfg.NATS.URL != "nats://example:4222" {
		t.Errorf("loaded config: %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
