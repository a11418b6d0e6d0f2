// Package config provides unified configuration for Parla Core hosts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by the mobile and desktop hosts.
type Config struct {
	// DataDir is the directory holding the SQLite database file.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Capture configures the mutation-capture pipeline.
	Capture CaptureConfig `yaml:"capture"`

	// Monitor configures the history reconciler.
	Monitor MonitorConfig `yaml:"monitor"`

	// Transport configures outbound synchronization.
	Transport TransportConfig `yaml:"transport"`

	// Desktop configures the desktop host surfaces.
	Desktop DesktopConfig `yaml:"desktop"`
}

// CaptureConfig tunes the change event queue.
type CaptureConfig struct {
	// QueueCapacity bounds the event queue. Producers never block; events
	// beyond capacity are dropped.
	QueueCapacity int `yaml:"queue_capacity"`
}

// MonitorConfig tunes the reconciler poll loop.
type MonitorConfig struct {
	// PollInterval is the delay between reconciler cycles.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Batch caps how many ledger records one cycle reads per partition.
	Batch int `yaml:"batch"`
}

// TransportConfig tunes outbound delivery.
type TransportConfig struct {
	// MaxRetries caps delivery attempts per entity before giving up.
	MaxRetries int `yaml:"max_retries"`
}

// DesktopConfig holds desktop-only settings.
type DesktopConfig struct {
	// WebSocketAddr is the local listen address for UI change push.
	WebSocketAddr string `yaml:"websocket_addr"`

	// MetricsAddr serves the Prometheus text exposition, empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		Capture: CaptureConfig{
			QueueCapacity: 1024,
		},
		Monitor: MonitorConfig{
			PollInterval: 5 * time.Second,
			Batch:        256,
		},
		Transport: TransportConfig{
			MaxRetries: 3,
		},
		Desktop: DesktopConfig{
			WebSocketAddr: "localhost:8090",
		},
	}
}

// Load reads a YAML config file, overlaying it on the defaults.
// A missing path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Capture.QueueCapacity <= 0 {
		return fmt.Errorf("capture.queue_capacity must be positive, got %d", c.Capture.QueueCapacity)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Monitor.Batch <= 0 {
		return fmt.Errorf("monitor.batch must be positive, got %d", c.Monitor.Batch)
	}
	if c.Transport.MaxRetries < 0 {
		return fmt.Errorf("transport.max_retries must not be negative, got %d", c.Transport.MaxRetries)
	}
	return nil
}
