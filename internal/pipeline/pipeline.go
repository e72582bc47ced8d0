// Package pipeline runs analyses and fans the results out to history,
// metrics and live subscribers. Every ingress (HTTP, Kafka, CLI,
// simulation) goes through a Pipeline.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics"
	"github.com/kubilitics/kubilitics-thermal/internal/db"
	"github.com/kubilitics/kubilitics-thermal/internal/metrics"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Sources label where a snapshot came from.
const (
	SourceHTTP       = "http"
	SourceKafka      = "kafka"
	SourceCLI        = "cli"
	SourceSimulation = "simulation"
)

const (
	recentCapacity = 100
	pruneEvery     = 100
)

// Sink receives every completed analysis.
type Sink interface {
	Publish(ctx context.Context, res *analytics.Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res *analytics.Result) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, res *analytics.Result) error { return f(ctx, res) }

// Pipeline wraps an analytics engine with its side effects.
type Pipeline struct {
	mu sync.RWMutex

	engine       *analytics.Engine
	store        db.Store
	historyLimit int
	sinks        []Sink
	logger       *zap.Logger

	saves  int
	recent []*analytics.Result
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists every result and keeps at most limit reports.
// A limit of zero disables pruning.
func WithStore(store db.Store, limit int) Option {
	return func(p *Pipeline) {
		p.store = store
		p.historyLimit = limit
	}
}

// WithSinks registers result subscribers.
func WithSinks(sinks ...Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pipeline around engine.
func New(engine *analytics.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine: engine,
		logger: zap.NewNop(),
		recent: make([]*analytics.Result, 0, recentCapacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddSink registers a subscriber after construction.
func (p *Pipeline) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Engine returns the underlying analytics engine.
func (p *Pipeline) Engine() *analytics.Engine { return p.engine }

// Store returns the history store, or nil when history is disabled.
func (p *Pipeline) Store() db.Store { return p.store }

// Process analyzes one snapshot and publishes the result. Storage and
// sink failures are logged; only analysis errors are returned.
func (p *Pipeline) Process(ctx context.Context, source string, req *models.AnalysisRequest) (*analytics.Result, error) {
	res, err := p.engine.Analyze(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrMalformedInput) {
			metrics.MalformedInputs.WithLabelValues(source).Inc()
		}
		return nil, err
	}
	p.record(ctx, source, res)
	return res, nil
}

// ProcessJSON decodes and processes a raw JSON snapshot.
func (p *Pipeline) ProcessJSON(ctx context.Context, source string, data []byte) (*analytics.Result, error) {
	req, err := models.ParseAnalysisRequest(data)
	if err != nil {
		metrics.MalformedInputs.WithLabelValues(source).Inc()
		return nil, err
	}
	return p.Process(ctx, source, req)
}

// Recent returns up to limit of the latest results, newest first.
func (p *Pipeline) Recent(limit int) []*analytics.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*analytics.Result, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, p.recent[i])
	}
	return out
}

func (p *Pipeline) record(ctx context.Context, source string, res *analytics.Result) {
	metrics.ObserveAnalysis(source, metrics.Analysis{
		Tag:              string(res.Tag),
		Focus:            string(res.Focus),
		AnomalyCount:     res.AnomalyCount,
		ClusterConfirmed: res.ClusterConfirmed,
		OnlineCount:      res.OnlineCount,
		Duration:         res.Duration,
	})

	p.mu.Lock()
	if len(p.recent) >= recentCapacity {
		p.recent = p.recent[recentCapacity/10:]
	}
	p.recent = append(p.recent, res)
	sinks := append([]Sink(nil), p.sinks...)
	prune := false
	if p.store != nil {
		p.saves++
		prune = p.historyLimit > 0 && p.saves%pruneEvery == 0
	}
	p.mu.Unlock()

	if p.store != nil {
		p.save(ctx, source, res, prune)
	}

	for _, s := range sinks {
		if err := s.Publish(ctx, res); err != nil {
			p.logger.Warn("Result sink failed",
				zap.String("analysis_id", res.ID),
				zap.Error(err))
		}
	}
}

func (p *Pipeline) save(ctx context.Context, source string, res *analytics.Result, prune bool) {
	if err := p.store.SaveReport(ctx, db.FromResult(source, res)); err != nil {
		metrics.HistoryWrites.WithLabelValues("error").Inc()
		p.logger.Error("Failed to store report",
			zap.String("analysis_id", res.ID),
			zap.Error(err))
		return
	}
	metrics.HistoryWrites.WithLabelValues("ok").Inc()

	if !prune {
		return
	}
	n, err := p.store.Prune(ctx, p.historyLimit)
	if err != nil {
		p.logger.Warn("Failed to prune report history", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Debug("Pruned report history", zap.Int64("deleted", n))
	}
}
