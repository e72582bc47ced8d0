package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

func TestBuild_FiltersOnlineAndKeepsOrder(t *testing.T) {
	sensors := []models.SensorReading{
		{ID: "a", Status: "online", Temperature: 20, Humidity: 40, X: 1, Y: 2, Z: 3, Drift: 0.1},
		{ID: "b", Status: "offline", Temperature: 99},
		{ID: "c", Status: "maintenance", Temperature: 98},
		{ID: "d", Status: "online", Temperature: 25, Humidity: 41, X: 4, Y: 5, Z: 6},
	}

	m := Build(sensors)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, "a", m.Sensors[0].ID)
	assert.Equal(t, "d", m.Sensors[1].ID)
	assert.Equal(t, Vector{20, 40, 1, 2, 3, 0.1}, m.Vectors[0])
	assert.Equal(t, Vector{25, 41, 4, 5, 6, 0}, m.Vectors[1])
	assert.Equal(t, []float64{20, 25}, m.Column(ColTemperature))

	rows := m.Rows()
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], Dimensions)
}

func TestBuild_Empty(t *testing.T) {
	m := Build([]models.SensorReading{{Status: "offline"}})
	assert.True(t, m.Empty())
	assert.Equal(t, 0, m.DistinctRows())
}

func TestDistinctRows(t *testing.T) {
	s := models.SensorReading{Status: "online", Temperature: 21, Humidity: 45}
	m := Build([]models.SensorReading{s, s, s})
	assert.Equal(t, 1, m.DistinctRows())

	s2 := s
	s2.Drift = 0.2
	m = Build([]models.SensorReading{s, s2, s})
	assert.Equal(t, 2, m.DistinctRows())
}

func TestStandardScaler(t *testing.T) {
	rows := [][]float64{
		{1, 10, 5},
		{2, 10, 5},
		{3, 10, 5},
	}

	var s StandardScaler
	out := s.FitTransform(rows)

	assert.Equal(t, []float64{2, 10, 5}, s.Mean)
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 0.0, s.Scale[1])

	want := 1 / math.Sqrt(2.0/3.0)
	assert.InDelta(t, -want, out[0][0], 1e-12)
	assert.InDelta(t, 0, out[1][0], 1e-12)
	assert.InDelta(t, want, out[2][0], 1e-12)
	for _, row := range out {
		assert.Equal(t, 0.0, row[1], "zero-variance column maps to 0")
		assert.Equal(t, 0.0, row[2])
	}
}

func TestStandardScaler_SingleRow(t *testing.T) {
	var s StandardScaler
	out := s.FitTransform([][]float64{{22, 45, 1, 2, 3, 0}})
	require.Len(t, out, 1)
	for _, v := range out[0] {
		assert.False(t, math.IsNaN(v))
		assert.Equal(t, 0.0, v)
	}
}

func TestStandardScaler_Empty(t *testing.T) {
	var s StandardScaler
	assert.Empty(t, s.FitTransform(nil))
}
