package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3003, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.GRPC.Enabled)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
	assert.Equal(t, 100, cfg.Heatmap.Columns)
	assert.Equal(t, 80, cfg.Heatmap.Rows)
	assert.Equal(t, "thermal.snapshots", cfg.Kafka.SnapshotTopic)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "Normal", cfg.Simulation.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.Empty(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modifyFn func(*Config)
		errorMsg string
	}{
		{
			name:     "invalid port - too low",
			modifyFn: func(cfg *Config) { cfg.Server.Port = 0 },
			errorMsg: "port must be between 1 and 65535",
		},
		{
			name:     "invalid port - too high",
			modifyFn: func(cfg *Config) { cfg.Server.Port = 70000 },
			errorMsg: "port must be between 1 and 65535",
		},
		{
			name:     "grpc port collision",
			modifyFn: func(cfg *Config) { cfg.GRPC.Port = cfg.Server.Port },
			errorMsg: "collides with server port",
		},
		{
			name:     "tiny heatmap grid",
			modifyFn: func(cfg *Config) { cfg.Heatmap.Rows = 1 },
			errorMsg: "grid must be at least 2x2",
		},
		{
			name:     "oversized cells",
			modifyFn: func(cfg *Config) { cfg.Heatmap.CellSize = 100 },
			errorMsg: "cell_size must be between 1 and 64",
		},
		{
			name:     "missing sqlite path",
			modifyFn: func(cfg *Config) { cfg.Database.SQLitePath = "" },
			errorMsg: "sqlite_path is required",
		},
		{
			name: "kafka without brokers",
			modifyFn: func(cfg *Config) {
				cfg.Kafka.Enabled = true
				cfg.Kafka.Brokers = nil
			},
			errorMsg: "at least one broker is required",
		},
		{
			name:     "unknown simulation mode",
			modifyFn: func(cfg *Config) { cfg.Simulation.Mode = "Meltdown" },
			errorMsg: "invalid simulation mode",
		},
		{
			name:     "unknown focus",
			modifyFn: func(cfg *Config) { cfg.Simulation.Focus = "COST" },
			errorMsg: "invalid focus",
		},
		{
			name:     "invalid log level",
			modifyFn: func(cfg *Config) { cfg.Logging.Level = "invalid" },
			errorMsg: "invalid log level",
		},
		{
			name:     "invalid log format",
			modifyFn: func(cfg *Config) { cfg.Logging.Format = "invalid" },
			errorMsg: "invalid log format",
		},
		{
			name:     "relative metrics path",
			modifyFn: func(cfg *Config) { cfg.Metrics.Path = "metrics" },
			errorMsg: "must start with '/'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs, "expected validation errors but got none")

			found := false
			for _, err := range errs {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
				if strings.Contains(err.Error(), tt.errorMsg) {
					found = true
				}
			}
			assert.True(t, found, "expected error message containing '%s', got: %v", tt.errorMsg, errs)
		})
	}
}

func TestConfigValidation_DisabledSectionsAreSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Enabled = false
	cfg.Database.SQLitePath = ""
	cfg.GRPC.Enabled = false
	cfg.GRPC.Port = 0
	cfg.Kafka.Brokers = nil

	assert.Empty(t, cfg.Validate())
}

func TestConfigManagerLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  allowed_origins: ["https://ops.example.com"]

analysis:
  seed: 7

kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]

simulation:
  mode: "LocalizedFire"

logging:
  level: "debug"
  format: "text"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(7), cfg.Analysis.Seed)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "thermal.snapshots", cfg.Kafka.SnapshotTopic)
	assert.Equal(t, "LocalizedFire", cfg.Simulation.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NoError(t, mgr.Validate(ctx))
}

func TestConfigManagerEnvironmentOverrides(t *testing.T) {
	t.Setenv("THERMAL_PORT", "7070")
	t.Setenv("THERMAL_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("THERMAL_LOGGING_LEVEL", "warn")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8081\n"), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	cfg := mgr.Get(ctx)

	assert.Equal(t, 7070, cfg.Server.Port, "THERMAL_PORT should override the file")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfigManagerMissingFile(t *testing.T) {
	mgr, err := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, 3003, mgr.Get(ctx).Server.Port)
}

func TestConfigManagerNoFile(t *testing.T) {
	mgr, err := NewConfigManager("")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, DefaultConfig().Heatmap, mgr.Get(ctx).Heatmap)
	require.NoError(t, mgr.Reload(ctx))
}

func TestConfigManagerValidation(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
server:
  port: 99999

logging:
  level: "verbose"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	err = mgr.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestConfigManagerReload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: error\n"), 0644))
	require.NoError(t, mgr.Reload(ctx))
	assert.Equal(t, "error", mgr.Get(ctx).Logging.Level)
}

func TestConfigManagerWatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	updates := mgr.Watch(ctx)
	require.NoError(t, os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0644))

	// A truncating write may surface an intermediate empty file first.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-updates:
			if cfg.Logging.Level == "debug" {
				return
			}
		case <-deadline:
			t.Skip("filesystem notifications unavailable")
		}
	}
}
