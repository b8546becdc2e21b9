package sampler

import (
	"go.uber.org/zap"
)

// Phase is the part of a run an iteration belongs to
type Phase int

// Run phases
const (
	WarmupPhase Phase = iota
	SamplingPhase
)

// String implements fmt.Stringer
func (p Phase) String() string {
	if p == WarmupPhase {
		return "warmup"
	}
	return "sampling"
}

// Progress is reported after every iteration
type Progress struct {
	Iteration  int
	Iterations int
	Phase      Phase
	Stats      DrawStats
}

// ProgressFunc receives progress reports. It is called on the sampling
// goroutine and should return quickly.
type ProgressFunc func(Progress)

// Option customises a run
type Option func(*runOptions)

type runOptions struct {
	log      *zap.SugaredLogger
	progress ProgressFunc
}

// WithLogger sets the structured logger (the default discards everything)
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *runOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithProgress registers a per-iteration callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *runOptions) {
		o.progress = fn
	}
}

func newRunOptions(opts []Option) *runOptions {
	o := &runOptions{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *runOptions) report(p Progress) {
	if o.progress != nil {
		o.progress(p)
	}
}

// divergenceWarnRate is the fraction of divergent sampling iterations above
// which a warning is logged
const divergenceWarnRate = 0.01
