package hmc

import (
	"math"

	"github.com/pkg/errors"
)

// StepConfig holds the dual averaging constants. The defaults follow Hoffman
// and Gelman (2014).
type StepConfig struct {
	Delta float64 `mapstructure:"target_accept" yaml:"target_accept"` // target acceptance statistic
	Gamma float64 `mapstructure:"gamma" yaml:"gamma"`                 // adaptation regularisation scale
	T0    float64 `mapstructure:"t0" yaml:"t0"`                       // iteration offset, damps early iterations
	Kappa float64 `mapstructure:"kappa" yaml:"kappa"`                 // decay of the averaging weights
}

// DefaultStepConfig returns Delta=0.8, Gamma=0.05, T0=10, Kappa=0.75
func DefaultStepConfig() StepConfig {
	return StepConfig{
		Delta: 0.8,
		Gamma: 0.05,
		T0:    10,
		Kappa: 0.75,
	}
}

// Check returns an error for constants that would break the adaptation
func (c StepConfig) Check() error {
	if !(c.Delta > 0 && c.Delta < 1) {
		return errors.Errorf("Target acceptance %v must be in (0, 1)", c.Delta)
	}
	if !(c.Gamma > 0) {
		return errors.Errorf("Gamma %v must be positive", c.Gamma)
	}
	if !(c.T0 >= 0) {
		return errors.Errorf("T0 %v must be non-negative", c.T0)
	}
	if !(c.Kappa > 0 && c.Kappa <= 1) {
		return errors.Errorf("Kappa %v must be in (0, 1]", c.Kappa)
	}
	return nil
}

// The step size is kept inside these bounds so it stays strictly positive
// and finite.
var (
	minLogStep = math.Log(1e-15)
	maxLogStep = math.Log(1e7)
)

// StepAdapter tunes the leapfrog step size toward a target acceptance
// statistic with Nesterov dual averaging.
type StepAdapter struct {
	Config StepConfig

	counter   int
	logEps    float64 // current (noisy) log step size
	logEpsBar float64 // weighted average of logEps, used after warmup
	hBar      float64 // running average of Delta - accept
	mu        float64 // shrinkage point, log(10 * eps0)
	frozen    bool
}

// NewStepAdapter creates an adapter starting at step size eps
func NewStepAdapter(cfg StepConfig, eps float64) (*StepAdapter, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	s := &StepAdapter{Config: cfg}
	if err := s.Restart(eps); err != nil {
		return nil, err
	}
	return s, nil
}

// Restart begins a new averaging window from step size eps. It is called at
// the start of warmup and after every mass matrix update.
func (s *StepAdapter) Restart(eps float64) error {
	if !(eps > 0) || math.IsInf(eps, 1) {
		return errors.Errorf("Step size %v must be positive and finite", eps)
	}

	s.counter = 0
	s.hBar = 0
	s.logEpsBar = 0
	s.logEps = clampLogStep(math.Log(eps))
	s.mu = math.Log(10) + s.logEps
	s.frozen = false
	return nil
}

// Observe folds in one iteration's acceptance statistic. Values above 1 are
// treated as 1 and NaN as 0. After Finalize this is a no-op.
func (s *StepAdapter) Observe(accept float64) {
	if s.frozen {
		return
	}

	if math.IsNaN(accept) || accept < 0 {
		accept = 0
	} else if accept > 1 {
		accept = 1
	}

	s.counter++
	c := s.Config
	t := float64(s.counter)

	eta := 1.0 / (t + c.T0)
	s.hBar = (1-eta)*s.hBar + eta*(c.Delta-accept)

	logEps := s.mu - math.Sqrt(t)/c.Gamma*s.hBar
	if math.IsNaN(logEps) {
		return // keep the last valid step size
	}
	s.logEps = clampLogStep(logEps)

	w := math.Pow(t, -c.Kappa)
	s.logEpsBar = w*s.logEps + (1-w)*s.logEpsBar
}

// StepSize returns the step size to use for the next trajectory
func (s *StepAdapter) StepSize() float64 {
	return math.Exp(s.logEps)
}

// AveragedStepSize returns exp of the weighted average of the log step size
func (s *StepAdapter) AveragedStepSize() float64 {
	if s.counter == 0 {
		return s.StepSize()
	}
	return math.Exp(s.logEpsBar)
}

// Counter is the number of observations in the current window
func (s *StepAdapter) Counter() int {
	return s.counter
}

// Finalize freezes the step size at its averaged value (not the last raw
// value) and ends adaptation.
func (s *StepAdapter) Finalize() float64 {
	if !s.frozen {
		s.logEps = clampLogStep(math.Log(s.AveragedStepSize()))
		s.frozen = true
	}
	return s.StepSize()
}

// Frozen reports whether Finalize has been called
func (s *StepAdapter) Frozen() bool {
	return s.frozen
}

func clampLogStep(v float64) float64 {
	return math.Max(minLogStep, math.Min(maxLogStep, v))
}
