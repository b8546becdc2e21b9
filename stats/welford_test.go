package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/gonuts/rand"
)

func TestWelfordEmpty(t *testing.T) {
	assert := assert.New(t)

	w := NewWelfordVar(3)
	assert.Equal(int64(0), w.N())
	assert.Equal(3, w.Dim())

	v, err := w.Variance()
	assert.Nil(v)
	assert.Equal(ErrTooFewSamples, err)

	assert.NoError(w.Update([]float64{1, 2, 3}))
	v, err = w.Variance()
	assert.Nil(v)
	assert.Error(err)
	assert.Equal([]float64{1, 2, 3}, w.Mean())

	assert.Error(w.Update([]float64{1, 2}))
	assert.Equal(int64(1), w.N())
}

func TestWelfordTwo(t *testing.T) {
	assert := assert.New(t)

	w := NewWelfordVar(2)
	assert.NoError(w.Update([]float64{1, 0}))
	assert.NoError(w.Update([]float64{0, 1}))

	v, err := w.Variance()
	assert.NoError(err)
	assert.InDeltaSlice([]float64{0.5, 0.5}, v, 1e-12)
	assert.InDeltaSlice([]float64{0.5, 0.5}, w.Mean(), 1e-12)
}

// Compare against the direct two-pass formula, then check reset gives
// exactly the same answer on the same data.
func TestWelfordMatchesTwoPass(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	gen, err := rand.NewGenerator(42)
	require.NoError(err)

	const n, dim = 5000, 4
	cols := make([][]float64, dim)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			// large offset makes a naive sum-of-squares lose precision
			x := 1e8 + float64(d+1)*gen.NormFloat64()
			rows[i][d] = x
			cols[d] = append(cols[d], x)
		}
	}

	w := NewWelfordVar(dim)
	for _, r := range rows {
		require.NoError(w.Update(r))
	}
	first, err := w.Variance()
	require.NoError(err)

	for d := 0; d < dim; d++ {
		mean, variance := stat.MeanVariance(cols[d], nil)
		assert.InEpsilon(variance, first[d], 1e-6)
		assert.InEpsilon(mean, w.Mean()[d], 1e-10)
	}

	w.Reset()
	assert.Equal(int64(0), w.N())
	for _, r := range rows {
		require.NoError(w.Update(r))
	}
	second, err := w.Variance()
	require.NoError(err)
	assert.Equal(first, second)
}
