// Package config tests for configuration loading.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefault verifies built-in defaults are usable.
func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate, got %v", err)
	}
	if cfg.Capture.QueueCapacity != 1024 {
		t.Errorf("QueueCapacity = %d, want 1024", cfg.Capture.QueueCapacity)
	}
	if cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.Monitor.PollInterval)
	}
}

// TestLoad_missingFile verifies a missing path yields defaults.
func TestLoad_missingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %q, want default", cfg.DataDir)
	}
}

// TestLoad_overlay verifies file values override defaults, others survive.
func TestLoad_overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parla.yaml")
	content := `
data_dir: /var/lib/parla
capture:
  queue_capacity: 64
monitor:
  poll_interval: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/var/lib/parla" {
		t.Errorf("DataDir = %q, want /var/lib/parla", cfg.DataDir)
	}
	if cfg.Capture.QueueCapacity != 64 {
		t.Errorf("QueueCapacity = %d, want 64", cfg.Capture.QueueCapacity)
	}
	if cfg.Monitor.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %s, want 250ms", cfg.Monitor.PollInterval)
	}
	// Untouched section keeps its default.
	if cfg.Transport.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.Transport.MaxRetries)
	}
}

// TestLoad_invalid verifies validation failures surface.
func TestLoad_invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parla.yaml")
	content := "capture:\n  queue_capacity: -5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail for non-positive queue capacity")
	}
}

// TestLoad_malformedYAML verifies parse errors surface.
func TestLoad_malformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parla.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail for malformed YAML")
	}
}
