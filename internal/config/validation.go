package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

var (
	validFoci = map[string]bool{
		"HSE":         true,
		"ENERGY":      true,
		"MAINTENANCE": true,
		"DIAGNOSTIC":  true,
	}
	validModes = map[string]bool{
		"normal":         true,
		"localizedfire":  true,
		"hvacfailure":    true,
		"hvac_failure":   true,
		"chaos":          true,
		"subzero":        true,
		"suppression":    true,
		"drill":          true,
		"realworlddrill": true,
	}
)

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Validate server configuration
	errs = append(errs, validatePort("server.port", c.Server.Port)...)
	if c.Server.ReadTimeoutSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: fmt.Sprintf("read_timeout_seconds cannot be negative, got %d", c.Server.ReadTimeoutSeconds),
		})
	}
	if c.Server.WriteTimeoutSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: fmt.Sprintf("write_timeout_seconds cannot be negative, got %d", c.Server.WriteTimeoutSeconds),
		})
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.max_body_bytes",
			Message: fmt.Sprintf("max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes),
		})
	}

	// Validate gRPC configuration
	if c.GRPC.Enabled {
		errs = append(errs, validatePort("grpc.port", c.GRPC.Port)...)
		if c.GRPC.Port == c.Server.Port {
			errs = append(errs, &ValidationError{
				Field:   "grpc.port",
				Message: fmt.Sprintf("grpc port %d collides with server port", c.GRPC.Port),
			})
		}
	}

	// Validate heatmap configuration
	if c.Heatmap.Columns < 2 || c.Heatmap.Rows < 2 {
		errs = append(errs, &ValidationError{
			Field:   "heatmap",
			Message: fmt.Sprintf("grid must be at least 2x2, got %dx%d", c.Heatmap.Columns, c.Heatmap.Rows),
		})
	}
	if c.Heatmap.CellSize < 1 || c.Heatmap.CellSize > 64 {
		errs = append(errs, &ValidationError{
			Field:   "heatmap.cell_size",
			Message: fmt.Sprintf("cell_size must be between 1 and 64, got %d", c.Heatmap.CellSize),
		})
	}

	// Validate database configuration
	if c.Database.Enabled && c.Database.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.sqlite_path",
			Message: "sqlite_path is required when the database is enabled",
		})
	}
	if c.Database.HistoryLimit < 0 {
		errs = append(errs, &ValidationError{
			Field:   "database.history_limit",
			Message: fmt.Sprintf("history_limit cannot be negative, got %d", c.Database.HistoryLimit),
		})
	}

	// Validate kafka configuration
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, &ValidationError{
				Field:   "kafka.brokers",
				Message: "at least one broker is required when kafka is enabled",
			})
		}
		if c.Kafka.SnapshotTopic == "" {
			errs = append(errs, &ValidationError{
				Field:   "kafka.snapshot_topic",
				Message: "snapshot_topic is required when kafka is enabled",
			})
		}
		if c.Kafka.GroupID == "" {
			errs = append(errs, &ValidationError{
				Field:   "kafka.group_id",
				Message: "group_id is required when kafka is enabled",
			})
		}
	}

	// Validate simulation configuration
	if !validModes[strings.ToLower(c.Simulation.Mode)] {
		errs = append(errs, &ValidationError{
			Field:   "simulation.mode",
			Message: fmt.Sprintf("invalid simulation mode '%s'", c.Simulation.Mode),
		})
	}
	if c.Simulation.IntervalMillis < 10 {
		errs = append(errs, &ValidationError{
			Field:   "simulation.interval_millis",
			Message: fmt.Sprintf("interval_millis must be at least 10, got %d", c.Simulation.IntervalMillis),
		})
	}
	if !validFoci[strings.ToUpper(c.Simulation.Focus)] {
		errs = append(errs, &ValidationError{
			Field:   "simulation.focus",
			Message: fmt.Sprintf("invalid focus '%s', must be one of: HSE, ENERGY, MAINTENANCE, DIAGNOSTIC", c.Simulation.Focus),
		})
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format '%s', must be one of: json, text", c.Logging.Format),
		})
	}

	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		errs = append(errs, &ValidationError{
			Field:   "logging.max_size_mb",
			Message: fmt.Sprintf("max_size_mb must be at least 1 when logging to a file, got %d", c.Logging.MaxSizeMB),
		})
	}

	// Validate metrics configuration
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, &ValidationError{
			Field:   "metrics.path",
			Message: fmt.Sprintf("metrics path must start with '/', got '%s'", c.Metrics.Path),
		})
	}

	return errs
}

func validatePort(field string, port int) []error {
	if port < 1 || port > 65535 {
		return []error{&ValidationError{
			Field:   field,
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", port),
		}}
	}
	return nil
}
