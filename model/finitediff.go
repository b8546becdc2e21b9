package model

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// FiniteDiff turns any LogProber into a Target by estimating the gradient
// with central differences. It costs 2*Dim extra density evaluations per
// gradient, so it is meant for small models and for checking hand-written
// gradients.
type FiniteDiff struct {
	LogProber
	Step float64 // zero means the fd package default
}

// LogProbGrad implements Target
func (f FiniteDiff) LogProbGrad(q, grad []float64) float64 {
	lp := f.LogProb(q)
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		return lp
	}

	fd.Gradient(grad, f.LogProb, q, &fd.Settings{
		Formula: fd.Central,
		Step:    f.Step,
	})
	return lp
}
