package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridWithOutlier() [][]float64 {
	var rows [][]float64
	for i := 0; i < 5; i++ {
		for j := 0; j < 4; j++ {
			rows = append(rows, []float64{float64(i) * 0.25, float64(j) * 0.25})
		}
	}
	return append(rows, []float64{6, 6})
}

func TestOneClassSVM_DualConstraints(t *testing.T) {
	data := gridWithOutlier()
	svm := NewOneClassSVM()
	require.NoError(t, svm.Fit(data))

	sum := 0.0
	for _, a := range svm.dualCoef {
		assert.Greater(t, a, 0.0)
		assert.LessOrEqual(t, a, 1.0)
		sum += a
	}
	assert.InDelta(t, DefaultNu*float64(len(data)), sum, 1e-9)
	assert.Equal(t, len(svm.dualCoef), svm.SupportVectors())
	assert.Equal(t, 0.5, svm.fittedGamma, "auto gamma is 1/n_features")
}

func TestOneClassSVM_FlagsDistantPoint(t *testing.T) {
	data := gridWithOutlier()
	svm := NewOneClassSVM()

	verdicts, err := svm.Detect(data)
	require.NoError(t, err)
	require.Len(t, verdicts, len(data))
	assert.True(t, verdicts[len(data)-1])
	assert.Less(t, svm.Decision(data[len(data)-1]), DefaultTolerance)
}

func TestOneClassSVM_Deterministic(t *testing.T) {
	data := gridWithOutlier()

	a, err := NewOneClassSVM().Detect(data)
	require.NoError(t, err)
	b, err := NewOneClassSVM().Detect(data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOneClassSVM_IdenticalRows(t *testing.T) {
	svm := NewOneClassSVM()
	verdicts, err := svm.Detect([][]float64{{0, 0}, {0, 0}, {0, 0}})
	require.NoError(t, err)
	assert.Len(t, verdicts, 3)
}

func TestOneClassSVM_Options(t *testing.T) {
	svm := NewOneClassSVM(WithNu(0.2), WithGamma(0.1), WithTolerance(1e-6))
	assert.Equal(t, 0.2, svm.nu)
	assert.Equal(t, 0.1, svm.gamma)
	assert.Equal(t, 1e-6, svm.tol)

	keep := NewOneClassSVM(WithNu(0), WithGamma(-1), WithTolerance(0))
	assert.Equal(t, DefaultNu, keep.nu)
	assert.Equal(t, 0.0, keep.gamma)
	assert.Equal(t, DefaultTolerance, keep.tol)
}

func TestOneClassSVM_InvalidInput(t *testing.T) {
	_, err := NewOneClassSVM().Detect(nil)
	assert.ErrorIs(t, err, ErrNoData)
}
