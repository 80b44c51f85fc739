package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
app:
  port: 8080
  gin_mode: release
backend:
  base_url: https://api.internal.example.com
  timeout: 15s
redis:
  addr: localhost:6379
  db: 2
  key_prefix: "authclient:"
session:
  refresh_margin: 5m
  refresh_floor: 60s
  poll_interval: 5m
idle:
  check_interval: 30s
  auto_logout_after: 30m
  warning_threshold: 5m
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.BackendBaseURL != "https://api.internal.example.com" {
		t.Errorf("BackendBaseURL = %q", cfg.BackendBaseURL)
	}
	if cfg.BackendTimeout != 15*time.Second {
		t.Errorf("BackendTimeout = %v, want 15s", cfg.BackendTimeout)
	}
	if cfg.RefreshMargin != 5*time.Minute {
		t.Errorf("RefreshMargin = %v, want 5m", cfg.RefreshMargin)
	}
	if cfg.RefreshFloor != time.Minute {
		t.Errorf("RefreshFloor = %v, want 60s", cfg.RefreshFloor)
	}
	if cfg.AutoLogoutAfter != 30*time.Minute {
		t.Errorf("AutoLogoutAfter = %v, want 30m", cfg.AutoLogoutAfter)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("RedisDB = %d, want 2", cfg.RedisDB)
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	minimal := `
app:
  port: 9090
backend:
  base_url: http://localhost:3000
`
	cfg, err := LoadFrom(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.RefreshMargin != 5*time.Minute {
		t.Errorf("default RefreshMargin = %v, want 5m", cfg.RefreshMargin)
	}
	if cfg.RefreshFloor != time.Minute {
		t.Errorf("default RefreshFloor = %v, want 1m", cfg.RefreshFloor)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("default PollInterval = %v, want 5m", cfg.PollInterval)
	}
	if cfg.IdleCheckInterval != 30*time.Second {
		t.Errorf("default IdleCheckInterval = %v, want 30s", cfg.IdleCheckInterval)
	}
	if cfg.WarningThreshold != 5*time.Minute {
		t.Errorf("default WarningThreshold = %v, want 5m", cfg.WarningThreshold)
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://override.example.com")
	t.Setenv("REDIS_DB", "7")

	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.BackendBaseURL != "https://override.example.com" {
		t.Errorf("BackendBaseURL = %q, want env override", cfg.BackendBaseURL)
	}
	if cfg.RedisDB != 7 {
		t.Errorf("RedisDB = %d, want 7", cfg.RedisDB)
	}
}

func TestLoadFrom_BadDuration(t *testing.T) {
	bad := `
session:
  refresh_margin: not-a-duration
`
	if _, err := LoadFrom(writeConfig(t, bad)); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
