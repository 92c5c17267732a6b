package neat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivations(t *testing.T) {
	for name, fn := range ActivationFunctions {
		for _, x := range []float64{-100, -1, 0, 0.5, 100} {
			y := fn(x)
			assert.False(t, math.IsNaN(y) || math.IsInf(y, 0), "%s(%v) = %v", name, x, y)
		}
	}
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.InDelta(t, 1, Sigmoid(100), 1e-12)
	assert.Equal(t, 0.0, ReLU(-2))
	assert.Equal(t, -0.25, Identity(-0.25))
	assert.Equal(t, 1.0, Clamped(3))
	assert.Equal(t, 1.0, Gaussian(0))
	assert.Equal(t, 0.0, Inv(0))
	assert.Equal(t, 0.0, Hat(2))

	_, err := GetActivation("softmax")
	require.Error(t, err)
}

func TestAggregations(t *testing.T) {
	in := []float64{1, -3, 2}
	cases := map[string]float64{
		"sum":     0,
		"product": -6,
		"min":     -3,
		"max":     2,
		"mean":    0,
		"median":  1,
		"maxabs":  -3,
	}
	for name, want := range cases {
		fn, err := GetAggregation(name)
		require.NoError(t, err)
		assert.Equal(t, want, fn(in), name)
		assert.Equal(t, 0.0, fn(nil), "%s of no inputs", name)
	}
	_, err := GetAggregation("avg")
	require.Error(t, err)
}

func TestStatFunctions(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.Equal(t, 5.0, Mean(values))
	assert.Equal(t, 40.0, Sum(values))
	assert.Equal(t, 9.0, MaxFloat(values))
	assert.Equal(t, 2.0, MinFloat(values))
	assert.Equal(t, 4.5, Median(values))
	assert.InDelta(t, math.Sqrt(32.0/7), Stdev(values), 1e-12)

	assert.Equal(t, 0.0, Stdev([]float64{3}))
	assert.True(t, math.IsInf(MaxFloat(nil), -1))
	assert.True(t, math.IsInf(MinFloat(nil), 1))
	assert.True(t, math.IsNaN(Median(nil)))
}
