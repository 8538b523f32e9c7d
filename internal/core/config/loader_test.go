package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
prober:
  endpoint: http://localhost:9000/health
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Prober.Kind != "http" {
		t.Errorf("Prober.Kind = %q, want http", cfg.Prober.Kind)
	}
	if cfg.Prober.Name != "service" {
		t.Errorf("Prober.Name = %q, want service", cfg.Prober.Name)
	}
	if cfg.Auth.SnapshotTTL != time.Hour {
		t.Errorf("Auth.SnapshotTTL = %v, want 1h", cfg.Auth.SnapshotTTL)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SHIELD_TEST_ENDPOINT", "http://svc.internal/health")
	t.Setenv("SHIELD_TEST_REDIS", "redis://localhost:6379/0")

	path := writeConfig(t, `
prober:
  endpoint: ${SHIELD_TEST_ENDPOINT}
redis:
  url: ${SHIELD_TEST_REDIS}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prober.Endpoint != "http://svc.internal/health" {
		t.Errorf("Prober.Endpoint = %q", cfg.Prober.Endpoint)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("Redis.URL = %q", cfg.Redis.URL)
	}
}

func TestLoadRequiresProberEndpoint(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for missing prober.endpoint")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
prober:
  kind: grpc
  name: identity
  endpoint: identity.internal:443
  service: identity.v1.Identity
performance:
  max_entries: 100
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Prober.Kind != "grpc" || cfg.Prober.Service != "identity.v1.Identity" {
		t.Errorf("Prober = %+v", cfg.Prober)
	}
	if cfg.Performance.MaxEntries != 100 {
		t.Errorf("Performance.MaxEntries = %d, want 100", cfg.Performance.MaxEntries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}
