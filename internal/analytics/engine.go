package analytics

// Package analytics runs thermal anomaly analysis over one sensor snapshot.
//
// Pipeline:
//   1. Feature building: online sensors only, six features per sensor
//   2. Standardization: per-column z-scores, fitted per call
//   3. Ensemble: isolation forest AND one-class SVM must both flag a row
//   4. Spatial consensus: two anomalies closer than 6 units form a cluster
//   5. Statistics: temperature spread and drift trend
//   6. Reporting: focus-dependent status line
//
// An Engine holds configuration only. Every call builds fresh models, so a
// single Engine may be shared by any number of goroutines.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics/anomaly"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/features"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/ml"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/report"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/stats"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Result is the outcome of one analysis.
type Result struct {
	ID               string        `json:"id"`
	Report           string        `json:"report"`
	Tag              report.Tag    `json:"tag"`
	Rule             string        `json:"rule"`
	Focus            models.Focus  `json:"focus"`
	AnomalyCount     int           `json:"anomalyCount"`
	AnomalyIndices   []int         `json:"anomalyIndices"`
	AnomalySensors   []string      `json:"anomalySensors,omitempty"`
	ClusterConfirmed bool          `json:"clusterConfirmed"`
	OnlineCount      int           `json:"onlineCount"`
	OfflineCount     int           `json:"offlineCount"`
	Stats            stats.Summary `json:"stats"`
	AnalyzedAt       time.Time     `json:"analyzedAt"`
	Duration         time.Duration `json:"durationNs"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed fixes the random seed of the isolation forest.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDetectors replaces the default detector factories.
func WithDetectors(factories ...anomaly.DetectorFactory) Option {
	return func(e *Engine) {
		e.factories = factories
	}
}

// Engine performs thermal analysis.
type Engine struct {
	seed      int64
	factories []anomaly.DetectorFactory
	logger    *zap.Logger
}

// NewEngine creates an engine with the isolation forest and one-class SVM.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		seed:   ml.DefaultSeed,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.factories == nil {
		e.factories = anomaly.DefaultFactories(e.seed)
	}
	return e
}

// Seed returns the isolation forest seed.
func (e *Engine) Seed() int64 {
	return e.seed
}

// Analyze runs the full pipeline over req. It only fails when ctx is done or
// req is nil; degenerate input produces a report, not an error.
func (e *Engine) Analyze(ctx context.Context, req *models.AnalysisRequest) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("analyze: %w: nil request", models.ErrMalformedInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{
		ID:             uuid.New().String(),
		Focus:          req.Focus(),
		OfflineCount:   req.OfflineCount(),
		AnalyzedAt:     start.UTC(),
		AnomalyIndices: []int{},
	}

	matrix := features.Build(req.Sensors)
	res.OnlineCount = matrix.Len()
	if matrix.Empty() {
		e.finish(res, report.NoOnline(), start)
		return res, nil
	}

	verdict := anomaly.NewEnsemble(e.logger, e.factories...).Detect(matrix)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	positions := make([][3]float64, 0, verdict.Count())
	for _, idx := range verdict.Indices {
		sensor := matrix.Sensors[idx]
		positions = append(positions, sensor.Position())
		res.AnomalyIndices = append(res.AnomalyIndices, idx)
		res.AnomalySensors = append(res.AnomalySensors, sensor.ID)
	}
	res.AnomalyCount = verdict.Count()
	res.ClusterConfirmed = anomaly.ClusterConfirmed(positions)
	res.Stats = stats.Summarize(matrix.Sensors)

	rep := report.Generate(report.Findings{
		Focus:            res.Focus,
		AnomalyCount:     res.AnomalyCount,
		ClusterConfirmed: res.ClusterConfirmed,
		Stats:            res.Stats,
		OnlineCount:      res.OnlineCount,
		OfflineCount:     res.OfflineCount,
	})
	e.finish(res, rep, start)
	return res, nil
}

// AnalyzeJSON decodes a request document and analyzes it.
func (e *Engine) AnalyzeJSON(ctx context.Context, data []byte) (*Result, error) {
	req, err := models.ParseAnalysisRequest(data)
	if err != nil {
		return nil, err
	}
	return e.Analyze(ctx, req)
}

func (e *Engine) finish(res *Result, rep report.Report, start time.Time) {
	res.Report = rep.Text
	res.Tag = rep.Tag
	res.Rule = rep.Rule
	res.Duration = time.Since(start)

	e.logger.Debug("Analysis complete",
		zap.String("id", res.ID),
		zap.String("focus", string(res.Focus)),
		zap.String("tag", string(res.Tag)),
		zap.String("rule", res.Rule),
		zap.Int("online", res.OnlineCount),
		zap.Int("offline", res.OfflineCount),
		zap.Int("anomalies", res.AnomalyCount),
		zap.Bool("cluster", res.ClusterConfirmed),
		zap.Duration("duration", res.Duration))
}
