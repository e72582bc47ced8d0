package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

func readings(temps []float64, drifts []float64) []models.SensorReading {
	out := make([]models.SensorReading, len(temps))
	for i, t := range temps {
		out[i] = models.SensorReading{Status: models.StatusOnline, Temperature: t}
		if i < len(drifts) {
			out[i].Drift = drifts[i]
		}
	}
	return out
}

func TestSummarize(t *testing.T) {
	s := Summarize(readings([]float64{20, 22, 24, 26}, []float64{1, 1, 0, 0}))

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 23.0, s.Mean, 1e-12)
	assert.Equal(t, 26.0, s.Max)
	assert.Equal(t, 20.0, s.Min)
	assert.Equal(t, 6.0, s.Range)
	assert.InDelta(t, 2.2360679, s.StdDev, 1e-6)
	assert.Equal(t, 0.5, s.MeanDrift)
	assert.Equal(t, TrendStable, s.Trend)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, Summary{Trend: TrendStable}, s)
}

func TestSummarize_SingleSensor(t *testing.T) {
	s := Summarize(readings([]float64{42}, []float64{-2}))
	assert.Equal(t, 42.0, s.Mean)
	assert.Zero(t, s.Range)
	assert.Zero(t, s.StdDev)
	assert.Equal(t, TrendFalling, s.Trend)
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		drift float64
		want  Trend
	}{
		{0, TrendStable},
		{0.5, TrendStable},
		{0.51, TrendRising},
		{3, TrendRising},
		{-0.5, TrendStable},
		{-0.51, TrendFalling},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyTrend(tt.drift), "drift %v", tt.drift)
	}
}
