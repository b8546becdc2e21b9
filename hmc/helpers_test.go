package hmc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/gonuts/model"
	"github.com/CraigKelly/gonuts/rand"
)

// scaledNormal is an independent normal with per-coordinate scales
func scaledNormal(scales ...float64) model.Target {
	return model.TargetFunc{
		N: len(scales),
		Fn: func(q, grad []float64) float64 {
			lp := 0.0
			for i, s := range scales {
				z := q[i] / s
				lp -= 0.5 * z * z
				if grad != nil {
					grad[i] = -q[i] / (s * s)
				}
			}
			return lp
		},
	}
}

func stdNormal(dim int) model.Target {
	scales := make([]float64, dim)
	for i := range scales {
		scales[i] = 1
	}
	return scaledNormal(scales...)
}

func testGen(t testing.TB, seed int64) *rand.Generator {
	gen, err := rand.NewGenerator(seed)
	require.NoError(t, err)
	return gen
}

// pointAt evaluates target at q
func pointAt(target model.Target, q ...float64) *Point {
	z := NewPoint(len(q))
	copy(z.Q, q)
	z.LogProb = target.LogProbGrad(z.Q, z.Grad)
	return z
}

func sumSq(x []float64) float64 {
	return floats.Dot(x, x)
}
