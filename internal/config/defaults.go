package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Port = 3003
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	cfg.Server.ReadTimeoutSeconds = 15
	cfg.Server.WriteTimeoutSeconds = 30
	cfg.Server.MaxBodyBytes = 4 << 20

	// gRPC health defaults
	cfg.GRPC.Enabled = true
	cfg.GRPC.Port = 50061

	// Analysis defaults
	cfg.Analysis.Seed = 42

	// Heatmap defaults
	cfg.Heatmap.Columns = 100
	cfg.Heatmap.Rows = 80
	cfg.Heatmap.CellSize = 5
	cfg.Heatmap.MarkerRadius = 4

	// Database defaults
	cfg.Database.Enabled = true
	cfg.Database.SQLitePath = "./thermal.db"
	cfg.Database.HistoryLimit = 10000

	// Kafka defaults
	cfg.Kafka.Enabled = false
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.SnapshotTopic = "thermal.snapshots"
	cfg.Kafka.ReportTopic = "thermal.reports"
	cfg.Kafka.GroupID = "kubilitics-thermal"

	// Simulation defaults
	cfg.Simulation.Seed = 1
	cfg.Simulation.Mode = "Normal"
	cfg.Simulation.IntervalMillis = 1000
	cfg.Simulation.Focus = "HSE"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.File = ""
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	// Metrics defaults
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	return cfg
}
