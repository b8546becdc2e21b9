package model

import (
	"io/ioutil"
	"math"

	"github.com/pkg/errors"
)

// LogProber is a (possibly unnormalised) log density over an unconstrained
// real vector of fixed dimension.
type LogProber interface {
	Dim() int
	LogProb(q []float64) float64
}

// Target is a LogProber that can also supply its gradient. This is the only
// thing the samplers know about a model. LogProbGrad writes the gradient of
// the log density at q into grad (len(grad) == Dim()) and returns the log
// density. It must be a pure function of q. A non-finite return value marks q
// as outside the support; the contents of grad are then ignored.
type Target interface {
	LogProber
	LogProbGrad(q, grad []float64) float64
}

// TargetFunc adapts a closure to the Target interface. Fn must fill grad when
// it is non-nil.
type TargetFunc struct {
	N  int
	Fn func(q, grad []float64) float64
}

// Dim implements LogProber
func (t TargetFunc) Dim() int {
	return t.N
}

// LogProb implements LogProber
func (t TargetFunc) LogProb(q []float64) float64 {
	return t.Fn(q, nil)
}

// LogProbGrad implements Target
func (t TargetFunc) LogProbGrad(q, grad []float64) float64 {
	return t.Fn(q, grad)
}

// Check returns an error if q cannot be used as a starting point for lp: the
// length must match and the log density must be finite.
func Check(lp LogProber, q []float64) error {
	if lp == nil {
		return errors.New("No target supplied")
	}
	if lp.Dim() < 1 {
		return errors.Errorf("Target dimension %d must be positive", lp.Dim())
	}
	if len(q) != lp.Dim() {
		return errors.Errorf("Position has length %d but target has dimension %d", len(q), lp.Dim())
	}

	v := lp.LogProb(q)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Errorf("Log density %v at initial position is not finite", v)
	}

	return nil
}

// readFile is shared by the file helpers below
func readFile(filename, what string) ([]byte, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ %s from %s", what, filename)
	}
	return data, nil
}
