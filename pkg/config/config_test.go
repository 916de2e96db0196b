package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	cfg := New()
	if cfg == nil {
		t.Fatal("New() should return non-nil config")
	}

	// Check defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.TimeoutSeconds != 30 {
		t.Errorf("expected default engine timeout 30, got %d", cfg.Engine.TimeoutSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format text, got %s", cfg.Logging.Format)
	}
	if cfg.Logging.FilePrefix != "endure" {
		t.Errorf("expected default file prefix endure, got %s", cfg.Logging.FilePrefix)
	}
}

func TestLoadReadsEngineBaseURLFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "non-existent.yaml")
	t.Setenv("DURABLE_ENGINE_BASE_URL", "http://engine:9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.BaseURL != "http://engine:9090" {
		t.Fatalf("expected engine base url from env, got %s", cfg.Engine.BaseURL)
	}
}

func TestLoadHandlesMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "non-existent.yaml")
	t.Setenv("SERVER_PORT", "9999")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load should ignore missing file: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected env port override, got %d", cfg.Server.Port)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"server":{"host":"127.0.0.1"},"engine":{"base_url":"http://localhost:1234"}}`), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected server host override, got %s", cfg.Server.Host)
	}
	if cfg.Engine.BaseURL != "http://localhost:1234" {
		t.Fatalf("expected engine base url override, got %s", cfg.Engine.BaseURL)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(path, []byte(`{invalid json}`), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEngineTimeout(t *testing.T) {
	if got := (EngineConfig{TimeoutSeconds: 5}).Timeout(); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
	if got := (EngineConfig{}).Timeout(); got != 30*time.Second {
		t.Fatalf("expected 30s default, got %v", got)
	}
}

func TestServerAddress(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8081}
	if got := cfg.Address(); got != "127.0.0.1:8081" {
		t.Fatalf("address mismatch: %s", got)
	}
}
