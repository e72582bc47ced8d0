// Package stats summarizes the temperature field of the online sensors.
package stats

import (
	"math"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Trend classifies the average calibration drift.
type Trend string

const (
	TrendRising  Trend = "Rising"
	TrendFalling Trend = "Falling"
	TrendStable  Trend = "Stable"
)

// Drift bounds, exclusive, for a non-stable trend.
const (
	RisingDrift  = 0.5
	FallingDrift = -0.5
)

// Summary holds descriptive statistics over online temperatures.
type Summary struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Max       float64 `json:"max"`
	Min       float64 `json:"min"`
	Range     float64 `json:"range"`
	StdDev    float64 `json:"stdDev"`
	MeanDrift float64 `json:"meanDrift"`
	Trend     Trend   `json:"trend"`
}

// Summarize computes the summary over the given sensors. Callers pass the
// online subset; an empty slice yields a zero summary with a stable trend.
func Summarize(sensors []models.SensorReading) Summary {
	s := Summary{Count: len(sensors), Trend: TrendStable}
	if len(sensors) == 0 {
		return s
	}

	s.Max = math.Inf(-1)
	s.Min = math.Inf(1)
	var sum, drift float64
	for _, r := range sensors {
		sum += r.Temperature
		drift += r.Drift
		s.Max = math.Max(s.Max, r.Temperature)
		s.Min = math.Min(s.Min, r.Temperature)
	}
	n := float64(len(sensors))
	s.Mean = sum / n
	s.Range = s.Max - s.Min
	s.MeanDrift = drift / n

	var ss float64
	for _, r := range sensors {
		d := r.Temperature - s.Mean
		ss += d * d
	}
	s.StdDev = math.Sqrt(ss / n)
	s.Trend = ClassifyTrend(s.MeanDrift)
	return s
}

// ClassifyTrend maps a mean drift to a trend label.
func ClassifyTrend(meanDrift float64) Trend {
	switch {
	case meanDrift > RisingDrift:
		return TrendRising
	case meanDrift < FallingDrift:
		return TrendFalling
	default:
		return TrendStable
	}
}
