package hmc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestParseMetric(t *testing.T) {
	assert := assert.New(t)

	for _, s := range []string{"unit", "UNIT", " unit_e "} {
		m, err := ParseMetric(s)
		assert.NoError(err)
		assert.Equal(UnitMetric, m)
	}
	for _, s := range []string{"diag", "diagonal", "diag_e"} {
		m, err := ParseMetric(s)
		assert.NoError(err)
		assert.Equal(DiagMetric, m)
	}

	_, err := ParseMetric("dense")
	assert.Error(err)

	assert.Equal("unit", UnitMetric.String())
	assert.Equal("diag", DiagMetric.String())
}

func TestMomentumHandlerErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := NewMomentumHandler(UnitMetric, 0)
	assert.Error(err)
	_, err = NewMomentumHandler(Metric(42), 2)
	assert.Error(err)

	unit, err := NewMomentumHandler(UnitMetric, 2)
	assert.NoError(err)
	assert.Error(unit.SetInverseMass([]float64{1, 1}))
	assert.Equal([]float64{1, 1}, unit.InverseMass())

	diag, err := NewMomentumHandler(DiagMetric, 2)
	assert.NoError(err)
	assert.Equal([]float64{1, 1}, diag.InverseMass())
	assert.Error(diag.SetInverseMass([]float64{1}))
	assert.Error(diag.SetInverseMass([]float64{1, 0}))
	assert.Error(diag.SetInverseMass([]float64{-1, 1}))

	v := []float64{2, 3}
	assert.NoError(diag.SetInverseMass(v))
	v[0] = 100
	assert.Equal([]float64{2, 3}, diag.InverseMass())
}

func TestKineticEnergy(t *testing.T) {
	assert := assert.New(t)

	p := []float64{1, -2, 0.5}

	unit, err := NewMomentumHandler(UnitMetric, 3)
	require.NoError(t, err)
	assert.InDelta(0.5*(1+4+0.25), unit.Kinetic(p), 1e-12)

	// diagonal mass m: K = 0.5 * sum p^2 / m
	mass := []float64{2, 0.5, 4}
	inv := make([]float64, 3)
	for i, m := range mass {
		inv[i] = 1 / m
	}
	diag, err := NewMomentumHandler(DiagMetric, 3)
	require.NoError(t, err)
	require.NoError(t, diag.SetInverseMass(inv))

	want := 0.0
	for i := range p {
		want += p[i] * p[i] / mass[i]
	}
	assert.InDelta(0.5*want, diag.Kinetic(p), 1e-12)

	vel := make([]float64, 3)
	diag.Velocity(vel, p)
	for i := range p {
		assert.InDelta(p[i]/mass[i], vel[i], 1e-12)
	}

	unit.Velocity(vel, p)
	assert.Equal(p, vel)
}

func TestMomentumSampleScale(t *testing.T) {
	assert := assert.New(t)
	gen := testGen(t, 7)

	h, err := NewMomentumHandler(DiagMetric, 2)
	require.NoError(t, err)
	require.NoError(t, h.SetInverseMass([]float64{4, 0.25}))

	const n = 20000
	p0 := make([]float64, n)
	p1 := make([]float64, n)
	p := make([]float64, 2)
	for i := 0; i < n; i++ {
		h.Sample(gen, p)
		p0[i], p1[i] = p[0], p[1]
	}

	// momentum variance is the mass, the reciprocal of the inverse mass
	assert.InEpsilon(0.25, stat.Variance(p0, nil), 0.05)
	assert.InEpsilon(4.0, stat.Variance(p1, nil), 0.05)
	assert.InDelta(0.0, stat.Mean(p0, nil), 0.02)
}
