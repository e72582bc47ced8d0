// Package anomaly fuses independent outlier detectors into a single verdict
// and checks whether the resulting anomalies agree spatially.
package anomaly

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics/features"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/ml"
)

// DetectorFactory builds a fresh, unfitted detector for one analysis.
type DetectorFactory func() ml.Detector

// Result is the consensus verdict over the online sensors.
type Result struct {
	// Verdicts holds one entry per matrix row; true when every detector
	// flagged the row.
	Verdicts []bool

	// Indices lists flagged rows in ascending order.
	Indices []int

	// Degenerate is set when detection was skipped because the matrix had
	// fewer than two distinct rows.
	Degenerate bool
}

// Count returns the number of consensus anomalies.
func (r *Result) Count() int {
	return len(r.Indices)
}

// Ensemble runs every detector on the standardized feature matrix and keeps
// only the rows all of them agree on.
type Ensemble struct {
	factories []DetectorFactory
	logger    *zap.Logger
}

// NewEnsemble creates an ensemble over the given detector factories.
func NewEnsemble(logger *zap.Logger, factories ...DetectorFactory) *Ensemble {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ensemble{factories: factories, logger: logger}
}

// DefaultFactories returns the isolation forest and one-class SVM factories
// seeded with seed.
func DefaultFactories(seed int64) []DetectorFactory {
	return []DetectorFactory{
		func() ml.Detector { return ml.NewIsolationForest(ml.WithSeed(seed)) },
		func() ml.Detector { return ml.NewOneClassSVM() },
	}
}

// Detect standardizes m and returns the consensus verdict. Detector failures
// are logged and reported as zero anomalies.
func (e *Ensemble) Detect(m *features.Matrix) *Result {
	res := &Result{Verdicts: make([]bool, m.Len())}
	if m.DistinctRows() < 2 {
		res.Degenerate = true
		return res
	}
	if len(e.factories) == 0 {
		return res
	}

	var scaler features.StandardScaler
	rows := scaler.FitTransform(m.Rows())

	for i := range res.Verdicts {
		res.Verdicts[i] = true
	}
	for _, factory := range e.factories {
		det := factory()
		verdicts, err := e.run(det, rows)
		if err != nil {
			e.logger.Warn("Detector failed, reporting no anomalies",
				zap.String("detector", det.Name()),
				zap.Int("rows", len(rows)),
				zap.Error(err))
			return &Result{Verdicts: make([]bool, m.Len())}
		}
		for i, v := range verdicts {
			res.Verdicts[i] = res.Verdicts[i] && v
		}
	}

	for i, v := range res.Verdicts {
		if v {
			res.Indices = append(res.Indices, i)
		}
	}

	e.logger.Debug("Ensemble verdict",
		zap.Int("rows", len(rows)),
		zap.Int("anomalies", len(res.Indices)))
	return res
}

func (e *Ensemble) run(det ml.Detector, rows [][]float64) (verdicts []bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector %s panicked: %v", det.Name(), r)
		}
	}()

	verdicts, err = det.Detect(rows)
	if err != nil {
		return nil, err
	}
	if len(verdicts) != len(rows) {
		return nil, fmt.Errorf("detector %s returned %d verdicts for %d rows", det.Name(), len(verdicts), len(rows))
	}
	return verdicts, nil
}
