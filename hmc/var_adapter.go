package hmc

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/gonuts/stats"
)

// VarConfig sets the warmup window schedule for mass matrix adaptation. It
// only matters for DiagMetric.
type VarConfig struct {
	InitBuffer int `mapstructure:"init_buffer" yaml:"init_buffer"` // fast iterations before the first slow window
	TermBuffer int `mapstructure:"term_buffer" yaml:"term_buffer"` // fast iterations after the last slow window
	WindowBase int `mapstructure:"window_base" yaml:"window_base"` // length of the first slow window
}

// DefaultVarConfig returns the usual 75 / 25 / 50 schedule
func DefaultVarConfig() VarConfig {
	return VarConfig{
		InitBuffer: 75,
		TermBuffer: 50,
		WindowBase: 25,
	}
}

// Check returns an error for negative buffer sizes
func (c VarConfig) Check() error {
	if c.InitBuffer < 0 || c.TermBuffer < 0 || c.WindowBase < 1 {
		return errors.Errorf("Invalid variance window config %+v", c)
	}
	return nil
}

// VarAdapter estimates a diagonal mass matrix during warmup. Warmup is split
// into an initial fast buffer, a series of slow windows that double in
// length, and a terminal fast buffer. Positions seen inside a slow window are
// accumulated; at the end of each window the regularised variance estimate
// becomes the new inverse mass. For UnitMetric every call is a no-op.
type VarAdapter struct {
	handler   *MomentumHandler
	estimator *stats.WelfordVar

	warmup      int
	counter     int
	windowBegin int
	windowEnd   int
	firstBegin  int
	firstEnd    int
	initBuffer  int
	termBuffer  int
	windowBase  int
}

// NewVarAdapter creates an adapter that writes into h over warmup iterations
func NewVarAdapter(h *MomentumHandler, warmup int, cfg VarConfig) (*VarAdapter, error) {
	if h == nil {
		return nil, errors.New("A momentum handler is required")
	}
	if warmup < 0 {
		return nil, errors.Errorf("Invalid warmup %d", warmup)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	v := &VarAdapter{
		handler:    h,
		warmup:     warmup,
		initBuffer: cfg.InitBuffer,
		termBuffer: cfg.TermBuffer,
		windowBase: cfg.WindowBase,
	}
	if h.Metric() == UnitMetric {
		return v, nil
	}
	v.estimator = stats.NewWelfordVar(h.Dim())

	if warmup <= 20 {
		// too short for buffers: one window over all of warmup
		v.initBuffer = 0
		v.termBuffer = 0
		v.windowBase = warmup
	} else if warmup < v.initBuffer+v.termBuffer+v.windowBase {
		v.initBuffer = int(0.15 * float64(warmup))
		v.termBuffer = int(0.10 * float64(warmup))
		v.windowBase = warmup - v.initBuffer - v.termBuffer
	}

	v.windowBegin = v.initBuffer
	v.windowEnd = v.windowBegin + v.windowBase
	if v.windowEnd+2*v.windowBase > v.slowEnd() {
		v.windowEnd = v.slowEnd()
	}
	v.firstBegin, v.firstEnd = v.windowBegin, v.windowEnd

	return v, nil
}

// slowEnd is the first iteration of the terminal buffer
func (v *VarAdapter) slowEnd() int {
	return v.warmup - v.termBuffer
}

// Observe feeds the position accepted at the current warmup iteration. It
// returns true when a window closed and the mass matrix was replaced.
func (v *VarAdapter) Observe(q []float64) (bool, error) {
	if v.estimator == nil {
		v.counter++
		return false, nil
	}

	if v.counter >= v.initBuffer && v.counter < v.slowEnd() {
		if err := v.estimator.Update(q); err != nil {
			return false, err
		}
	}

	if v.counter == v.windowEnd-1 {
		updated, err := v.UpdateMassMatrix()
		v.shiftWindow()
		v.counter++
		return updated, err
	}

	v.counter++
	return false, nil
}

// UpdateMassMatrix replaces the inverse mass with the regularised variance
// of the current window and resets the accumulator. With fewer than two
// observations the previous mass matrix is kept and false is returned.
func (v *VarAdapter) UpdateMassMatrix() (bool, error) {
	if v.estimator == nil {
		return false, nil
	}
	defer v.estimator.Reset()

	variance, err := v.estimator.Variance()
	if err == stats.ErrTooFewSamples {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// shrink toward a small multiple of identity
	n := float64(v.estimator.N())
	for i, s := range variance {
		variance[i] = (n/(n+5.0))*s + 1e-3*(5.0/(n+5.0))
	}

	if err := v.handler.SetInverseMass(variance); err != nil {
		return false, errors.Wrap(err, "Mass matrix update rejected")
	}
	return true, nil
}

// shiftWindow moves to the next slow window, doubling its length. If the
// window after it would not fit before the terminal buffer, the new window
// is stretched to the terminal buffer instead.
func (v *VarAdapter) shiftWindow() {
	if v.windowEnd == v.slowEnd() {
		return
	}

	size := v.windowEnd - v.windowBegin
	v.windowBegin = v.windowEnd
	v.windowEnd = v.windowBegin + 2*size

	if v.windowEnd == v.slowEnd() {
		return
	}
	if v.windowEnd+4*size > v.slowEnd() {
		v.windowEnd = v.slowEnd()
	}
}

// WindowEnds returns the 0-based warmup iterations after which the mass
// matrix is re-estimated over the whole warmup, without touching adapter
// state.
func (v *VarAdapter) WindowEnds() []int {
	if v.estimator == nil {
		return nil
	}

	sim := *v
	sim.windowBegin, sim.windowEnd = v.firstBegin, v.firstEnd
	var ends []int
	for sim.windowEnd > 0 && sim.windowEnd <= sim.warmup {
		ends = append(ends, sim.windowEnd-1)
		if sim.windowEnd == sim.slowEnd() {
			break
		}
		sim.shiftWindow()
	}
	return ends
}
