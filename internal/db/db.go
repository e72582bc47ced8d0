// Package db persists analysis reports. The analysis engine itself is
// stateless; history lives only in the service layer.
package db

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ReportRecord is one stored analysis.
type ReportRecord struct {
	ID               string    `json:"id"`
	Source           string    `json:"source"` // http, kafka, cli, simulation
	Focus            string    `json:"focus"`
	Tag              string    `json:"tag"`
	Rule             string    `json:"rule"`
	Report           string    `json:"report"`
	AnomalyCount     int       `json:"anomaly_count"`
	AnomalySensors   []string  `json:"anomaly_sensors"`
	ClusterConfirmed bool      `json:"cluster_confirmed"`
	OnlineCount      int       `json:"online_count"`
	OfflineCount     int       `json:"offline_count"`
	MeanTemp         float64   `json:"mean_temp"`
	MaxTemp          float64   `json:"max_temp"`
	MinTemp          float64   `json:"min_temp"`
	StdDevTemp       float64   `json:"std_dev_temp"`
	Trend            string    `json:"trend"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// ReportQuery filters report queries.
type ReportQuery struct {
	Tag    string
	Focus  string
	Source string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Store persists report history.
type Store interface {
	// SaveReport stores a report and its anomalous sensors.
	SaveReport(ctx context.Context, rec *ReportRecord) error

	// GetReport returns one report by ID.
	GetReport(ctx context.Context, id string) (*ReportRecord, error)

	// QueryReports returns matching reports, newest first.
	QueryReports(ctx context.Context, q ReportQuery) ([]*ReportRecord, error)

	// TagSummary counts reports per tag in [from, to]. Zero times are open.
	TagSummary(ctx context.Context, from, to time.Time) (map[string]int, error)

	// SensorAnomalyCounts returns how often each sensor was flagged.
	SensorAnomalyCounts(ctx context.Context, limit int) (map[string]int, error)

	// Prune keeps the newest keep reports and deletes the rest.
	Prune(ctx context.Context, keep int) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
