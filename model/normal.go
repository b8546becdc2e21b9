package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normal is a product of independent normal distributions. Its moments are
// known, so it doubles as a correctness check for the samplers.
type Normal struct {
	Mu    []float64
	Sigma []float64
	dists []distuv.Normal
}

// NewNormal creates independent normals with the given means and standard
// deviations.
func NewNormal(mu, sigma []float64) (*Normal, error) {
	if len(mu) < 1 {
		return nil, errors.New("At least one dimension is required")
	}
	if len(mu) != len(sigma) {
		return nil, errors.Errorf("Mean count %d != sigma count %d", len(mu), len(sigma))
	}

	n := &Normal{
		Mu:    make([]float64, len(mu)),
		Sigma: make([]float64, len(sigma)),
		dists: make([]distuv.Normal, len(mu)),
	}
	copy(n.Mu, mu)
	copy(n.Sigma, sigma)

	for i := range mu {
		if !(sigma[i] > 0) {
			return nil, errors.Errorf("Sigma[%d]=%v must be positive", i, sigma[i])
		}
		n.dists[i] = distuv.Normal{Mu: mu[i], Sigma: sigma[i]}
	}

	return n, nil
}

// NewStdNormal is Normal(0, 1) in dim dimensions
func NewStdNormal(dim int) (*Normal, error) {
	mu := make([]float64, dim)
	sigma := make([]float64, dim)
	for i := range sigma {
		sigma[i] = 1
	}
	return NewNormal(mu, sigma)
}

// Dim implements LogProber
func (n *Normal) Dim() int {
	return len(n.Mu)
}

// LogProb implements LogProber
func (n *Normal) LogProb(q []float64) float64 {
	lp := 0.0
	for i, d := range n.dists {
		lp += d.LogProb(q[i])
	}
	return lp
}

// LogProbGrad implements Target
func (n *Normal) LogProbGrad(q, grad []float64) float64 {
	for i := range n.Mu {
		s := n.Sigma[i]
		grad[i] = -(q[i] - n.Mu[i]) / (s * s)
	}
	return n.LogProb(q)
}

// Solution returns the exact posterior moments
func (n *Normal) Solution() *Solution {
	s := &Solution{
		Means:     make([]float64, len(n.Mu)),
		Variances: make([]float64, len(n.Mu)),
	}
	copy(s.Means, n.Mu)
	for i, sd := range n.Sigma {
		s.Variances[i] = sd * sd
	}
	return s
}
