package hmc

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gonuts/model"
	"github.com/CraigKelly/gonuts/rand"
)

// maxStepSearch bounds the doubling/halving loop in FindReasonableStepSize
const maxStepSearch = 50

// FindReasonableStepSize is the heuristic from Hoffman and Gelman (2014):
// starting from eps it takes single leapfrog steps from start with fresh
// momenta, doubling eps while the acceptance probability stays above 0.8
// (or halving it while it stays below), and returns the first step size that
// crosses the threshold. start must carry the gradient and log density at its
// position; its momentum is ignored. The search gives up after a bounded
// number of tries and returns the last step size.
func FindReasonableStepSize(target model.Target, h *MomentumHandler, gen *rand.Generator, start *Point, eps float64) (float64, error) {
	if !(eps > 0) || math.IsInf(eps, 1) {
		return 0, errors.Errorf("Step size %v must be positive and finite", eps)
	}
	if target == nil || h == nil || gen == nil || start == nil {
		return 0, errors.New("Step size search requires a target, momentum handler, generator and start point")
	}

	logThreshold := math.Log(0.8)
	z := start.Clone()
	vel := make([]float64, len(z.Q))

	// deltaH is H0 - H after one leapfrog step from start with fresh momenta
	deltaH := func() float64 {
		z.CopyFrom(start)
		h.Sample(gen, z.P)
		h0 := Hamiltonian(z, h)
		Leapfrog(target, h, z, eps, vel)
		d := h0 - Hamiltonian(z, h)
		if math.IsNaN(d) {
			return math.Inf(-1)
		}
		return d
	}

	direction := -1.0
	if deltaH() > logThreshold {
		direction = 1.0
	}

	for i := 0; i < maxStepSearch; i++ {
		eps *= math.Pow(2, direction)
		if eps == 0 || eps > 1e7 {
			break
		}

		d := deltaH()
		if direction == 1 && !(d > logThreshold) {
			break
		}
		if direction == -1 && !(d < logThreshold) {
			break
		}
	}

	if eps == 0 {
		return 0, errors.New("Step size search collapsed to zero")
	}
	return math.Min(eps, 1e7), nil
}
