package features

import "math"

// StandardScaler standardizes each column to zero mean and unit variance
// using the population standard deviation. A scaler is fitted per analysis
// and discarded afterwards.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitTransform fits the scaler on rows and returns the standardized copy.
// Columns with zero variance map to 0.
func (s *StandardScaler) FitTransform(rows [][]float64) [][]float64 {
	s.Fit(rows)
	return s.Transform(rows)
}

// Fit computes per-column mean and population standard deviation.
func (s *StandardScaler) Fit(rows [][]float64) {
	s.Mean = nil
	s.Scale = nil
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)
	n := float64(len(rows))

	for _, row := range rows {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Scale[j] += d * d
		}
	}
	for j := range s.Scale {
		s.Scale[j] = math.Sqrt(s.Scale[j] / n)
	}
}

// Transform standardizes rows with the fitted parameters.
func (s *StandardScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled := make([]float64, len(row))
		for j, v := range row {
			if j >= len(s.Scale) || s.Scale[j] == 0 {
				continue
			}
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out
}
