// Package features turns a sensor snapshot into the standardized feature
// matrix consumed by the outlier detectors.
package features

import "github.com/kubilitics/kubilitics-thermal/internal/models"

// Dimensions is the fixed width of a feature vector.
const Dimensions = 6

// Column order of a Vector.
const (
	ColTemperature = iota
	ColHumidity
	ColX
	ColY
	ColZ
	ColDrift
)

// Vector is the raw feature vector of one online sensor.
type Vector [Dimensions]float64

// Matrix holds one Vector per online sensor together with the readings they
// were built from. Row i of Vectors always describes Sensors[i].
type Matrix struct {
	Sensors []models.SensorReading
	Vectors []Vector
}

// Build filters the snapshot to online sensors and assembles their feature
// vectors in input order.
func Build(sensors []models.SensorReading) *Matrix {
	m := &Matrix{
		Sensors: make([]models.SensorReading, 0, len(sensors)),
		Vectors: make([]Vector, 0, len(sensors)),
	}
	for _, s := range sensors {
		if !s.Online() {
			continue
		}
		m.Sensors = append(m.Sensors, s)
		m.Vectors = append(m.Vectors, Vector{s.Temperature, s.Humidity, s.X, s.Y, s.Z, s.Drift})
	}
	return m
}

// Len returns the number of online sensors.
func (m *Matrix) Len() int {
	return len(m.Vectors)
}

// Empty reports whether no sensor is online.
func (m *Matrix) Empty() bool {
	return len(m.Vectors) == 0
}

// Rows returns the vectors as a row-major [][]float64.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, len(m.Vectors))
	for i := range m.Vectors {
		row := make([]float64, Dimensions)
		copy(row, m.Vectors[i][:])
		rows[i] = row
	}
	return rows
}

// DistinctRows counts the number of distinct raw feature vectors.
func (m *Matrix) DistinctRows() int {
	seen := make(map[Vector]struct{}, len(m.Vectors))
	for _, v := range m.Vectors {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Column returns one feature column of the online sensors.
func (m *Matrix) Column(col int) []float64 {
	out := make([]float64, len(m.Vectors))
	for i, v := range m.Vectors {
		out[i] = v[col]
	}
	return out
}
