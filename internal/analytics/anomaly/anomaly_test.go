package anomaly

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-thermal/internal/analytics/features"
	"github.com/kubilitics/kubilitics-thermal/internal/analytics/ml"
	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

type stubDetector struct {
	flag  map[int]bool
	err   error
	calls *int
}

func (s stubDetector) Name() string { return "stub" }

func (s stubDetector) Detect(rows [][]float64) ([]bool, error) {
	if s.calls != nil {
		*s.calls++
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]bool, len(rows))
	for i := range out {
		out[i] = s.flag[i]
	}
	return out, nil
}

func stub(d stubDetector) DetectorFactory {
	return func() ml.Detector { return d }
}

func snapshot(temps ...float64) *features.Matrix {
	sensors := make([]models.SensorReading, len(temps))
	for i, t := range temps {
		sensors[i] = models.SensorReading{Status: models.StatusOnline, Temperature: t, Humidity: 45, X: float64(i)}
	}
	return features.Build(sensors)
}

func TestEnsemble_Conjunction(t *testing.T) {
	e := NewEnsemble(zap.NewNop(),
		stub(stubDetector{flag: map[int]bool{0: true, 1: true, 3: true}}),
		stub(stubDetector{flag: map[int]bool{1: true, 2: true, 3: true}}),
	)

	res := e.Detect(snapshot(20, 21, 22, 23, 24))
	assert.Equal(t, []int{1, 3}, res.Indices)
	assert.Equal(t, 2, res.Count())
	assert.Equal(t, []bool{false, true, false, true, false}, res.Verdicts)
	assert.False(t, res.Degenerate)
}

func TestEnsemble_DegenerateSkipsDetectors(t *testing.T) {
	calls := 0
	e := NewEnsemble(nil, stub(stubDetector{flag: map[int]bool{0: true}, calls: &calls}))

	sensors := []models.SensorReading{
		{Status: models.StatusOnline, Temperature: 22, Humidity: 45},
		{Status: models.StatusOnline, Temperature: 22, Humidity: 45},
		{Status: models.StatusOnline, Temperature: 22, Humidity: 45},
	}
	res := e.Detect(features.Build(sensors))

	assert.True(t, res.Degenerate)
	assert.Zero(t, res.Count())
	assert.Len(t, res.Verdicts, 3)
	assert.Zero(t, calls)

	res = e.Detect(snapshot(30))
	assert.True(t, res.Degenerate)
	assert.Zero(t, calls)
}

func TestEnsemble_DetectorErrorYieldsNoAnomalies(t *testing.T) {
	e := NewEnsemble(zap.NewNop(),
		stub(stubDetector{flag: map[int]bool{0: true}}),
		stub(stubDetector{err: errors.New("solver diverged")}),
	)

	res := e.Detect(snapshot(20, 90))
	assert.Zero(t, res.Count())
	assert.Equal(t, []bool{false, false}, res.Verdicts)
}

type shortDetector struct{}

func (shortDetector) Name() string                       { return "short" }
func (shortDetector) Detect([][]float64) ([]bool, error) { return []bool{true}, nil }

type panicDetector struct{}

func (panicDetector) Name() string                       { return "panic" }
func (panicDetector) Detect([][]float64) ([]bool, error) { panic("boom") }

func TestEnsemble_MisbehavingDetectors(t *testing.T) {
	for _, det := range []ml.Detector{shortDetector{}, panicDetector{}} {
		d := det
		e := NewEnsemble(zap.NewNop(), func() ml.Detector { return d })
		res := e.Detect(snapshot(20, 21, 80))
		assert.Zero(t, res.Count(), d.Name())
	}
}

func TestEnsemble_DefaultFactoriesFlagHotSensor(t *testing.T) {
	sensors := make([]models.SensorReading, 6)
	for i := range sensors {
		sensors[i] = models.SensorReading{
			Status:      models.StatusOnline,
			Temperature: 25 + 0.1*float64(i%2),
			Humidity:    45,
			X:           float64(i) * 4,
		}
	}
	sensors[3].Temperature = 200

	e := NewEnsemble(zap.NewNop(), DefaultFactories(42)...)
	res := e.Detect(features.Build(sensors))
	require.GreaterOrEqual(t, res.Count(), 1)
	assert.Contains(t, res.Indices, 3)
}

func TestClusterConfirmed(t *testing.T) {
	tests := []struct {
		name      string
		positions [][3]float64
		want      bool
	}{
		{name: "none", positions: nil, want: false},
		{name: "single", positions: [][3]float64{{0, 0, 0}}, want: false},
		{name: "adjacent", positions: [][3]float64{{0, 0, 0}, {1, 0, 0}}, want: true},
		{name: "exactly threshold", positions: [][3]float64{{0, 0, 0}, {6, 0, 0}}, want: false},
		{name: "far apart", positions: [][3]float64{{0, 0, 0}, {0, 10, 0}}, want: false},
		{name: "3d distance", positions: [][3]float64{{0, 0, 0}, {3, 3, 3}}, want: true},
		{name: "one close pair among many", positions: [][3]float64{{0, 0, 0}, {20, 0, 0}, {-20, 0, 0}, {20, 5, 0}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClusterConfirmed(tt.positions))
		})
	}
}
