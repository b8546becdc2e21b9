package hmc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/gonuts/model"
	"github.com/CraigKelly/gonuts/rand"
	"github.com/CraigKelly/gonuts/stats"
)

// DefaultMaxDeltaH is the energy error beyond which a trajectory is declared
// divergent.
const DefaultMaxDeltaH = 1000.0

// TreeInput is everything one NUTS transition needs. Q, P, Grad and LogProb
// describe the starting point; Grad and LogProb must already be evaluated at
// Q. None of the input slices are modified.
type TreeInput struct {
	Target    model.Target
	Handler   *MomentumHandler
	Gen       *rand.Generator
	StepSize  float64
	MaxDepth  int
	MaxDeltaH float64

	Q       []float64
	P       []float64
	Grad    []float64
	LogProb float64
}

// TreeOutput is the result of one NUTS transition. The proposal is always
// accepted by the caller; Divergent and Turned are diagnostics.
type TreeOutput struct {
	Proposal []float64
	Grad     []float64 // gradient at Proposal
	LogProb  float64   // log density at Proposal

	AcceptStat   float64 // mean Metropolis acceptance over every leapfrog step
	Divergent    bool
	Turned       bool    // stopped by the no-U-turn criterion
	Depth        int     // completed doublings
	NLeapfrog    int     // leapfrog steps (= gradient evaluations)
	LogSumWeight float64 // log of the summed Boltzmann weights, relative to H0
	Energy       float64 // Hamiltonian at the selected point
}

// Check returns an error if the input cannot be used
func (in *TreeInput) Check() error {
	if in.Target == nil || in.Handler == nil || in.Gen == nil {
		return errors.New("Tree input requires a target, momentum handler and generator")
	}
	dim := in.Target.Dim()
	if len(in.Q) != dim || len(in.P) != dim || len(in.Grad) != dim || in.Handler.Dim() != dim {
		return errors.Errorf("Tree input dimension mismatch: target %d, q %d, p %d, grad %d, metric %d",
			dim, len(in.Q), len(in.P), len(in.Grad), in.Handler.Dim())
	}
	if !(in.StepSize > 0) || math.IsInf(in.StepSize, 1) {
		return errors.Errorf("Invalid step size %v", in.StepSize)
	}
	if in.MaxDepth < 1 {
		return errors.Errorf("Invalid max depth %d", in.MaxDepth)
	}
	if !(in.MaxDeltaH > 0) {
		return errors.Errorf("Invalid divergence threshold %v", in.MaxDeltaH)
	}
	return nil
}

// trajectory is the state shared by every level of one tree build
type trajectory struct {
	target    model.Target
	handler   *MomentumHandler
	gen       *rand.Generator
	eps       float64 // signed for the current direction
	h0        float64
	maxDeltaH float64

	z   *Point    // the moving end of the trajectory
	vel []float64 // leapfrog scratch

	nLeapfrog    int
	sumMetroProb float64
	divergent    bool
}

// Transition runs one NUTS iteration from the given point: it doubles a
// trajectory in random directions until a U-turn, a divergence, or MaxDepth,
// and returns a point drawn multinomially from every state visited.
//
// A divergence aborts the whole build; whatever was selected before the
// divergent subtree is returned, which is the starting point when the very
// first leapfrog step diverges.
func Transition(in *TreeInput) (*TreeOutput, error) {
	if err := in.Check(); err != nil {
		return nil, err
	}
	dim := len(in.Q)

	start := NewPoint(dim)
	copy(start.Q, in.Q)
	copy(start.P, in.P)
	copy(start.Grad, in.Grad)
	start.LogProb = in.LogProb

	t := &trajectory{
		target:    in.Target,
		handler:   in.Handler,
		gen:       in.Gen,
		h0:        Hamiltonian(start, in.Handler),
		maxDeltaH: in.MaxDeltaH,
		z:         start.Clone(),
		vel:       make([]float64, dim),
	}

	zFwd := start.Clone()
	zBck := start.Clone()
	zSample := start.Clone()
	zPropose := start.Clone()

	// momentum and sharp momentum at both ends of the forward and backward
	// subtrees
	vec := func(src []float64) []float64 {
		v := make([]float64, dim)
		copy(v, src)
		return v
	}
	pSharp := make([]float64, dim)
	in.Handler.Velocity(pSharp, start.P)

	pFwdFwd, pSharpFwdFwd := vec(start.P), vec(pSharp)
	pFwdBck, pSharpFwdBck := vec(start.P), vec(pSharp)
	pBckFwd, pSharpBckFwd := vec(start.P), vec(pSharp)
	pBckBck, pSharpBckBck := vec(start.P), vec(pSharp)

	// integrated momentum along the whole trajectory
	rho := vec(start.P)
	rhoFwd := make([]float64, dim)
	rhoBck := make([]float64, dim)
	rhoExt := make([]float64, dim)

	logSumWeight := 0.0 // log(exp(H0 - H0))
	out := &TreeOutput{}

	for out.Depth < in.MaxDepth {
		for i := range rhoFwd {
			rhoFwd[i] = 0
			rhoBck[i] = 0
		}
		logSumWeightSub := math.Inf(-1)

		var valid bool
		if in.Gen.Coin() {
			t.z.CopyFrom(zFwd)
			t.eps = in.StepSize
			copy(rhoBck, rho)
			copy(pBckFwd, pFwdFwd)
			copy(pSharpBckFwd, pSharpFwdFwd)

			valid = t.build(out.Depth, zPropose, pSharpFwdBck, pSharpFwdFwd, rhoFwd, pFwdBck, pFwdFwd, &logSumWeightSub)
			zFwd.CopyFrom(t.z)
		} else {
			t.z.CopyFrom(zBck)
			t.eps = -in.StepSize
			copy(rhoFwd, rho)
			copy(pFwdBck, pBckBck)
			copy(pSharpFwdBck, pSharpBckBck)

			valid = t.build(out.Depth, zPropose, pSharpBckFwd, pSharpBckBck, rhoBck, pBckFwd, pBckBck, &logSumWeightSub)
			zBck.CopyFrom(t.z)
		}

		if !valid {
			out.Turned = !t.divergent
			break
		}

		out.Depth++

		// biased progressive sampling: favour the new subtree
		if logSumWeightSub > logSumWeight {
			zSample.CopyFrom(zPropose)
		} else if in.Gen.Accept(math.Exp(logSumWeightSub - logSumWeight)) {
			zSample.CopyFrom(zPropose)
		}
		logSumWeight = stats.LogSumExp(logSumWeight, logSumWeightSub)

		floats.AddTo(rho, rhoBck, rhoFwd)

		persist := uturnFree(pSharpBckBck, pSharpFwdFwd, rho)

		floats.AddTo(rhoExt, rhoBck, pFwdBck)
		persist = persist && uturnFree(pSharpBckBck, pSharpFwdBck, rhoExt)

		floats.AddTo(rhoExt, rhoFwd, pBckFwd)
		persist = persist && uturnFree(pSharpBckFwd, pSharpFwdFwd, rhoExt)

		if !persist {
			out.Turned = true
			break
		}
	}

	out.Proposal = zSample.Q
	out.Grad = zSample.Grad
	out.LogProb = zSample.LogProb
	out.Divergent = t.divergent
	out.NLeapfrog = t.nLeapfrog
	out.LogSumWeight = logSumWeight
	out.Energy = Hamiltonian(zSample, in.Handler)
	if t.nLeapfrog > 0 {
		out.AcceptStat = t.sumMetroProb / float64(t.nLeapfrog)
	}

	return out, nil
}

// uturnFree is the generalized no-U-turn criterion: the sharp momenta at
// both ends must still point along the integrated momentum rho.
func uturnFree(pSharpMinus, pSharpPlus, rho []float64) bool {
	return floats.Dot(pSharpPlus, rho) > 0 && floats.Dot(pSharpMinus, rho) > 0
}

// build extends the trajectory from t.z by 2^depth leapfrog steps in the
// direction of t.eps. "Beginning" is the end adjacent to the existing
// trajectory. propose receives a state drawn uniformly-progressively from
// the new subtree, rho accumulates its momenta, and logSumWeight its
// Boltzmann weights. It returns false on divergence or an internal U-turn.
func (t *trajectory) build(depth int, propose *Point, pSharpBeg, pSharpEnd, rho, pBeg, pEnd []float64, logSumWeight *float64) bool {
	if depth == 0 {
		Leapfrog(t.target, t.handler, t.z, t.eps, t.vel)
		t.nLeapfrog++

		h := Hamiltonian(t.z, t.handler)
		if math.IsNaN(h) {
			h = math.Inf(1)
		}
		if math.Abs(h-t.h0) > t.maxDeltaH {
			t.divergent = true
		}

		*logSumWeight = stats.LogSumExp(*logSumWeight, t.h0-h)

		if t.h0-h > 0 {
			t.sumMetroProb++
		} else {
			t.sumMetroProb += math.Exp(t.h0 - h)
		}

		propose.CopyFrom(t.z)

		t.handler.Velocity(pSharpBeg, t.z.P)
		copy(pSharpEnd, pSharpBeg)

		floats.Add(rho, t.z.P)
		copy(pBeg, t.z.P)
		copy(pEnd, t.z.P)

		return !t.divergent
	}

	dim := len(rho)

	// initial subtree
	logSumWeightInit := math.Inf(-1)
	pInitEnd := make([]float64, dim)
	pSharpInitEnd := make([]float64, dim)
	rhoInit := make([]float64, dim)

	if !t.build(depth-1, propose, pSharpBeg, pSharpInitEnd, rhoInit, pBeg, pInitEnd, &logSumWeightInit) {
		return false
	}

	// final subtree
	proposeFinal := t.z.Clone()
	logSumWeightFinal := math.Inf(-1)
	pFinalBeg := make([]float64, dim)
	pSharpFinalBeg := make([]float64, dim)
	rhoFinal := make([]float64, dim)

	if !t.build(depth-1, proposeFinal, pSharpFinalBeg, pSharpEnd, rhoFinal, pFinalBeg, pEnd, &logSumWeightFinal) {
		return false
	}

	// multinomial draw between the two halves
	logSumWeightSub := stats.LogSumExp(logSumWeightInit, logSumWeightFinal)
	*logSumWeight = stats.LogSumExp(*logSumWeight, logSumWeightSub)

	if t.gen.Accept(math.Exp(logSumWeightFinal - logSumWeightSub)) {
		propose.CopyFrom(proposeFinal)
	}

	rhoSub := make([]float64, dim)
	floats.AddTo(rhoSub, rhoInit, rhoFinal)
	floats.Add(rho, rhoSub)

	persist := uturnFree(pSharpBeg, pSharpEnd, rhoSub)

	rhoExt := make([]float64, dim)
	floats.AddTo(rhoExt, rhoInit, pFinalBeg)
	persist = persist && uturnFree(pSharpBeg, pSharpFinalBeg, rhoExt)

	floats.AddTo(rhoExt, rhoFinal, pInitEnd)
	persist = persist && uturnFree(pSharpInitEnd, pSharpEnd, rhoExt)

	return persist
}
