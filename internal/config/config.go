package config

import "context"

// Package config provides configuration management for kubilitics-thermal.
//
// Configuration Sources (priority order, high to low):
//   1. CLI flags (applied by the caller)
//   2. Environment variables (THERMAL_* prefix, "." replaced by "_")
//   3. YAML config file (optional)
//   4. Built-in defaults
//
// Sections:
//   server     HTTP listen port, allowed CORS origins, timeouts, body limit
//   grpc       health service port
//   analysis   isolation forest seed
//   heatmap    grid resolution and image scale
//   database   SQLite report history
//   kafka      snapshot and report topics
//   simulation hall simulator seed, mode, tick interval, focus
//   logging    level, format and optional rotated file output
//   metrics    Prometheus endpoint
//
// Only logging.level, simulation.mode and simulation.focus are applied on
// hot reload by the serve command; other
// changes need a restart.

// Config struct contains all configuration fields
type Config struct {
	Server struct {
		Port int
		// AllowedOrigins lists CORS and WebSocket origins. ["*"] allows any.
		AllowedOrigins      []string
		ReadTimeoutSeconds  int
		WriteTimeoutSeconds int
		MaxBodyBytes        int64
	}

	GRPC struct {
		Enabled bool
		Port    int
	}

	Analysis struct {
		Seed int64
	}

	Heatmap struct {
		Columns      int
		Rows         int
		CellSize     int
		MarkerRadius int
	}

	Database struct {
		Enabled    bool
		SQLitePath string
		// HistoryLimit caps stored reports; 0 keeps everything.
		HistoryLimit int
	}

	Kafka struct {
		Enabled       bool
		Brokers       []string
		SnapshotTopic string
		ReportTopic   string
		GroupID       string
	}

	Simulation struct {
		Seed           int64
		Mode           string
		IntervalMillis int
		Focus          string
	}

	Logging struct {
		Level      string
		Format     string
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}

	Metrics struct {
		Enabled bool
		Path    string
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch delivers a fresh Config whenever the file changes.
	Watch(ctx context.Context) <-chan Config

	// Reload re-reads all sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager. An empty path means
// defaults and environment only.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}
