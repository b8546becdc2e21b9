package model

import (
	"math"

	"github.com/pkg/errors"
)

// Funnel is Neal's funnel: v ~ N(0, 3) and x_i | v ~ N(0, exp(v/2)). The
// neck of the funnel has curvature that no single step size handles, so it
// reliably produces divergent transitions. Parameter order is v, x_1..x_k.
type Funnel struct {
	K int // number of x coordinates
}

// NewFunnel creates a funnel with k x-coordinates (dimension k+1)
func NewFunnel(k int) (*Funnel, error) {
	if k < 1 {
		return nil, errors.Errorf("Funnel needs at least one x coordinate, got %d", k)
	}
	return &Funnel{K: k}, nil
}

// Dim implements LogProber
func (f *Funnel) Dim() int {
	return f.K + 1
}

// LogProb implements LogProber (up to an additive constant)
func (f *Funnel) LogProb(q []float64) float64 {
	v := q[0]
	lp := -v * v / 18.0
	ev := math.Exp(-v)
	for _, x := range q[1:] {
		lp += -0.5*x*x*ev - 0.5*v
	}
	return lp
}

// LogProbGrad implements Target
func (f *Funnel) LogProbGrad(q, grad []float64) float64 {
	v := q[0]
	ev := math.Exp(-v)
	grad[0] = -v / 9.0
	for i, x := range q[1:] {
		grad[0] += 0.5*x*x*ev - 0.5
		grad[i+1] = -x * ev
	}
	return f.LogProb(q)
}
