package hmc

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/gonuts/rand"
)

// Metric selects the mass matrix policy for a run. It is fixed at
// configuration time.
type Metric int

// Supported metrics
const (
	UnitMetric Metric = iota // identity mass matrix, never adapted
	DiagMetric               // diagonal mass matrix estimated during warmup
)

// String implements fmt.Stringer
func (m Metric) String() string {
	switch m {
	case UnitMetric:
		return "unit"
	case DiagMetric:
		return "diag"
	}
	return "unknown"
}

// ParseMetric is the inverse of String (it also accepts "diagonal")
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit", "unit_e":
		return UnitMetric, nil
	case "diag", "diagonal", "diag_e":
		return DiagMetric, nil
	}
	return UnitMetric, errors.Errorf("Unknown metric %q (expected unit or diag)", s)
}

// MomentumHandler draws momenta and computes kinetic energy under a metric.
// For DiagMetric it owns the inverse mass vector, which is the running
// estimate of the posterior variance of each coordinate.
type MomentumHandler struct {
	metric  Metric
	dim     int
	invMass []float64 // nil for UnitMetric
}

// NewMomentumHandler creates a handler; a diagonal metric starts at identity
func NewMomentumHandler(metric Metric, dim int) (*MomentumHandler, error) {
	if dim < 1 {
		return nil, errors.Errorf("Invalid dimension %d", dim)
	}

	h := &MomentumHandler{metric: metric, dim: dim}
	switch metric {
	case UnitMetric:
	case DiagMetric:
		h.invMass = make([]float64, dim)
		for i := range h.invMass {
			h.invMass[i] = 1
		}
	default:
		return nil, errors.Errorf("Unknown metric %d", metric)
	}

	return h, nil
}

// Metric returns the policy this handler was built with
func (h *MomentumHandler) Metric() Metric {
	return h.metric
}

// Sample fills p with a draw from N(0, M). With M^-1 = diag(v) that is
// z_i / sqrt(v_i) for standard normal z_i.
func (h *MomentumHandler) Sample(gen *rand.Generator, p []float64) {
	for i := range p {
		p[i] = gen.NormFloat64()
	}
	if h.metric == DiagMetric {
		for i, v := range h.invMass {
			p[i] /= math.Sqrt(v)
		}
	}
}

// Kinetic returns 0.5 * p' M^-1 p
func (h *MomentumHandler) Kinetic(p []float64) float64 {
	if h.metric == UnitMetric {
		return 0.5 * floats.Dot(p, p)
	}

	k := 0.0
	for i, v := range h.invMass {
		k += p[i] * p[i] * v
	}
	return 0.5 * k
}

// Velocity writes M^-1 p (the derivative of the kinetic energy) into dst
func (h *MomentumHandler) Velocity(dst, p []float64) {
	if h.metric == UnitMetric {
		copy(dst, p)
		return
	}
	floats.MulTo(dst, h.invMass, p)
}

// Dim is the number of coordinates
func (h *MomentumHandler) Dim() int {
	return h.dim
}

// InverseMass returns a copy of the diagonal of M^-1 (all ones for the
// unit metric).
func (h *MomentumHandler) InverseMass() []float64 {
	v := make([]float64, h.dim)
	if h.metric == UnitMetric {
		for i := range v {
			v[i] = 1
		}
		return v
	}
	copy(v, h.invMass)
	return v
}

// SetInverseMass replaces the diagonal of M^-1. Only a diagonal metric can
// be changed and every entry must be positive and finite.
func (h *MomentumHandler) SetInverseMass(v []float64) error {
	if h.metric != DiagMetric {
		return errors.Errorf("Cannot set inverse mass on %v metric", h.metric)
	}
	if len(v) != len(h.invMass) {
		return errors.Errorf("Inverse mass has length %d, expected %d", len(v), len(h.invMass))
	}
	for i, x := range v {
		if !(x > 0) || math.IsInf(x, 1) {
			return errors.Errorf("Inverse mass entry %d is %v, must be positive", i, x)
		}
	}
	copy(h.invMass, v)
	return nil
}
