// Package ml provides the unsupervised outlier detectors used by the
// anomaly ensemble.
package ml

import (
	"errors"
	"sort"
)

// Detector fits a fresh model on a feature matrix and returns one verdict per
// row: true marks an outlier. Implementations must not keep state between
// calls so that every analysis is self-contained.
type Detector interface {
	// Name identifies the detector in logs and metrics.
	Name() string

	// Detect fits on rows and classifies every row.
	Detect(rows [][]float64) ([]bool, error)
}

var (
	// ErrNoData is returned when a detector receives an empty matrix.
	ErrNoData = errors.New("no data")

	// ErrRaggedMatrix is returned when rows have differing widths.
	ErrRaggedMatrix = errors.New("rows have inconsistent feature counts")
)

// validateRows checks that rows is a non-empty rectangular matrix and returns
// its width.
func validateRows(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, ErrNoData
	}
	width := len(rows[0])
	if width == 0 {
		return 0, ErrNoData
	}
	for _, r := range rows[1:] {
		if len(r) != width {
			return 0, ErrRaggedMatrix
		}
	}
	return width, nil
}

// Percentile returns the q-th percentile (0-100) of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
