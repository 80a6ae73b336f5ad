package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yieldos/yield-engine/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.CacheTTL() != 30*time.Second {
		t.Errorf("cache ttl = %s, want 30s", cfg.CacheTTL())
	}
}

func TestLoadValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  shutdown_seconds: 5
storage:
  database_url: postgres://localhost/yieldos
cache:
  redis_url: redis://localhost:6379
  ttl_seconds: 60
log:
  level: debug
  format: text
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.ShutdownTimeout() != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.DatabaseURL != "postgres://localhost/yieldos" {
		t.Errorf("database_url = %q", cfg.Storage.DatabaseURL)
	}
	if cfg.Cache.RedisURL != "redis://localhost:6379" || cfg.CacheTTL() != time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override/db")
	t.Setenv("LOG_LEVEL", "warn")

	path := writeConfig(t, "storage:\n  database_url: postgres://file/db\nlog:\n  level: info\n")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DatabaseURL != "postgres://override/db" {
		t.Errorf("database_url = %q, want env override", cfg.Storage.DatabaseURL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
