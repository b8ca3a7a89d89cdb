package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0, 0}, []float64{1, 2, 3}))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 3.0, Mean([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, -2.0, Mean([]float64{-1, -2, -3}))
}

func TestVarianceAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 4.0, Variance(values), 1e-9)
	assert.InDelta(t, 2.0, StandardDeviation(values), 1e-9)
	assert.Equal(t, 0.0, Variance([]float64{5}))
	assert.Equal(t, 0.0, Variance(nil))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 1.0, Min([]float64{3, 1, 4, 1, 5}))
	assert.Equal(t, 5.0, Max([]float64{3, 1, 4, 1, 5}))
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
}

func TestSum(t *testing.T) {
	assert.Equal(t, 10.0, Sum([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0.0, Sum(nil))
}

func TestMinMaxNormalize(t *testing.T) {
	v, ok := MinMaxNormalize(5, []float64{0, 5, 10})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)

	_, ok = MinMaxNormalize(5, []float64{5, 5, 5})
	assert.False(t, ok)
}

func TestZScoreNormalizeDegenerateBatch(t *testing.T) {
	_, ok := ZScoreNormalize(5, []float64{5, 5, 5})
	assert.False(t, ok)

	v, ok := ZScoreNormalize(10, []float64{0, 10, 20})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)
}

func TestPercentileRank(t *testing.T) {
	assert.Equal(t, 1.0, PercentileRank(10, []float64{1, 5, 10}))
	assert.InDelta(t, 2.0/3.0, PercentileRank(5, []float64{1, 5, 10}), 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(2))
	assert.Equal(t, 0.5, Clamp01(0.5))
}
