// Package heatmap renders a top-down thermal map of a sensor snapshot. It
// shares the sensor model with the analysis engine but makes no decisions.
package heatmap

import (
	"math"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// Grid defaults and the IDW distance offset.
const (
	DefaultColumns = 100
	DefaultRows    = 80
	Margin         = 1.0
	Epsilon        = 1e-6
)

// Grid is an interpolated temperature field over the (x, z) plane. Values is
// indexed [row][column]; row 0 lies at the smallest z.
type Grid struct {
	XS     []float64
	ZS     []float64
	Values [][]float64
	Min    float64
	Max    float64
}

// Interpolate estimates temperatures on a cols × rows lattice spanning the
// sensors' (x, z) bounding box widened by Margin on every side. Each cell is
// the inverse-distance weighted mean of all sensor temperatures with weights
// 1/(d + Epsilon). It returns nil when there are no sensors.
func Interpolate(sensors []models.SensorReading, cols, rows int) *Grid {
	if len(sensors) == 0 || cols <= 0 || rows <= 0 {
		return nil
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, s := range sensors {
		minX = math.Min(minX, s.X)
		maxX = math.Max(maxX, s.X)
		minZ = math.Min(minZ, s.Z)
		maxZ = math.Max(maxZ, s.Z)
	}

	g := &Grid{
		XS:     Linspace(minX-Margin, maxX+Margin, cols),
		ZS:     Linspace(minZ-Margin, maxZ+Margin, rows),
		Values: make([][]float64, rows),
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
	}
	for i, z := range g.ZS {
		row := make([]float64, cols)
		for j, x := range g.XS {
			v := idw(sensors, x, z)
			row[j] = v
			g.Min = math.Min(g.Min, v)
			g.Max = math.Max(g.Max, v)
		}
		g.Values[i] = row
	}
	return g
}

func idw(sensors []models.SensorReading, x, z float64) float64 {
	var num, den float64
	for _, s := range sensors {
		w := 1 / (math.Hypot(s.X-x, s.Z-z) + Epsilon)
		num += w * s.Temperature
		den += w
	}
	return num / den
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
