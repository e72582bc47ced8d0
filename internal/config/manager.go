package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "THERMAL"

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	mu         sync.RWMutex
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
	watchOnce  sync.Once
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
		m.viper.SetConfigType("yaml")
	}

	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	if err := m.readFile(); err != nil {
		return err
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.Get(ctx).Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches the config file for changes. Without a file the channel
// never fires.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	if m.configPath == "" || m.viper == nil {
		return m.watchChan
	}
	m.watchOnce.Do(func() {
		m.viper.OnConfigChange(func(e fsnotify.Event) {
			if err := m.unmarshalConfig(); err != nil {
				return
			}
			m.applyEnvOverrides()
			select {
			case m.watchChan <- *m.Get(ctx):
			default:
				// Channel full, skip this update
			}
		})
		m.viper.WatchConfig()
	})
	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if m.viper == nil {
		return m.Load(ctx)
	}
	if err := m.readFile(); err != nil {
		return err
	}
	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.applyEnvOverrides()
	return nil
}

// readFile reads the optional config file. A missing file is not an error.
func (m *viperConfigManager) readFile() error {
	if m.configPath == "" {
		return nil
	}
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Server defaults
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	m.viper.SetDefault("server.read_timeout_seconds", defaults.Server.ReadTimeoutSeconds)
	m.viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)
	m.viper.SetDefault("server.max_body_bytes", defaults.Server.MaxBodyBytes)

	// gRPC defaults
	m.viper.SetDefault("grpc.enabled", defaults.GRPC.Enabled)
	m.viper.SetDefault("grpc.port", defaults.GRPC.Port)

	// Analysis defaults
	m.viper.SetDefault("analysis.seed", defaults.Analysis.Seed)

	// Heatmap defaults
	m.viper.SetDefault("heatmap.columns", defaults.Heatmap.Columns)
	m.viper.SetDefault("heatmap.rows", defaults.Heatmap.Rows)
	m.viper.SetDefault("heatmap.cell_size", defaults.Heatmap.CellSize)
	m.viper.SetDefault("heatmap.marker_radius", defaults.Heatmap.MarkerRadius)

	// Database defaults
	m.viper.SetDefault("database.enabled", defaults.Database.Enabled)
	m.viper.SetDefault("database.sqlite_path", defaults.Database.SQLitePath)
	m.viper.SetDefault("database.history_limit", defaults.Database.HistoryLimit)

	// Kafka defaults
	m.viper.SetDefault("kafka.enabled", defaults.Kafka.Enabled)
	m.viper.SetDefault("kafka.brokers", defaults.Kafka.Brokers)
	m.viper.SetDefault("kafka.snapshot_topic", defaults.Kafka.SnapshotTopic)
	m.viper.SetDefault("kafka.report_topic", defaults.Kafka.ReportTopic)
	m.viper.SetDefault("kafka.group_id", defaults.Kafka.GroupID)

	// Simulation defaults
	m.viper.SetDefault("simulation.seed", defaults.Simulation.Seed)
	m.viper.SetDefault("simulation.mode", defaults.Simulation.Mode)
	m.viper.SetDefault("simulation.interval_millis", defaults.Simulation.IntervalMillis)
	m.viper.SetDefault("simulation.focus", defaults.Simulation.Focus)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file", defaults.Logging.File)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	m.viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	m.viper.SetDefault("metrics.path", defaults.Metrics.Path)
}

// unmarshalConfig unmarshals viper config into Config struct.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	// Server
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")
	cfg.Server.ReadTimeoutSeconds = m.viper.GetInt("server.read_timeout_seconds")
	cfg.Server.WriteTimeoutSeconds = m.viper.GetInt("server.write_timeout_seconds")
	cfg.Server.MaxBodyBytes = m.viper.GetInt64("server.max_body_bytes")

	// gRPC
	cfg.GRPC.Enabled = m.viper.GetBool("grpc.enabled")
	cfg.GRPC.Port = m.viper.GetInt("grpc.port")

	// Analysis
	cfg.Analysis.Seed = m.viper.GetInt64("analysis.seed")

	// Heatmap
	cfg.Heatmap.Columns = m.viper.GetInt("heatmap.columns")
	cfg.Heatmap.Rows = m.viper.GetInt("heatmap.rows")
	cfg.Heatmap.CellSize = m.viper.GetInt("heatmap.cell_size")
	cfg.Heatmap.MarkerRadius = m.viper.GetInt("heatmap.marker_radius")

	// Database
	cfg.Database.Enabled = m.viper.GetBool("database.enabled")
	cfg.Database.SQLitePath = m.viper.GetString("database.sqlite_path")
	cfg.Database.HistoryLimit = m.viper.GetInt("database.history_limit")

	// Kafka
	cfg.Kafka.Enabled = m.viper.GetBool("kafka.enabled")
	cfg.Kafka.Brokers = m.viper.GetStringSlice("kafka.brokers")
	cfg.Kafka.SnapshotTopic = m.viper.GetString("kafka.snapshot_topic")
	cfg.Kafka.ReportTopic = m.viper.GetString("kafka.report_topic")
	cfg.Kafka.GroupID = m.viper.GetString("kafka.group_id")

	// Simulation
	cfg.Simulation.Seed = m.viper.GetInt64("simulation.seed")
	cfg.Simulation.Mode = m.viper.GetString("simulation.mode")
	cfg.Simulation.IntervalMillis = m.viper.GetInt("simulation.interval_millis")
	cfg.Simulation.Focus = m.viper.GetString("simulation.focus")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.File = m.viper.GetString("logging.file")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	// Metrics
	cfg.Metrics.Enabled = m.viper.GetBool("metrics.enabled")
	cfg.Metrics.Path = m.viper.GetString("metrics.path")

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// applyEnvOverrides applies the short-form environment variables used by
// container deployments.
func (m *viperConfigManager) applyEnvOverrides() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// THERMAL_PORT is the short form of THERMAL_SERVER_PORT.
	if portEnv := os.Getenv(EnvPrefix + "_PORT"); portEnv != "" {
		if port := m.viper.GetInt("port"); port > 0 {
			m.config.Server.Port = port
		}
	}

	// Comma-separated broker list.
	if brokers := os.Getenv(EnvPrefix + "_KAFKA_BROKERS"); brokers != "" {
		var list []string
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				list = append(list, b)
			}
		}
		m.config.Kafka.Brokers = list
	}

	if origins := os.Getenv(EnvPrefix + "_ALLOWED_ORIGINS"); origins != "" {
		m.config.Server.AllowedOrigins = strings.Split(origins, ",")
	}
}
