package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gonuts/hmc"
)

// ErrInvalidConfig is the cause of every configuration error. Use
// errors.Cause to test for it.
var ErrInvalidConfig = errors.New("invalid sampler configuration")

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// ConfigBase holds the settings every sampler shares. Iterations counts
// warmup iterations too.
type ConfigBase struct {
	Iterations int   `mapstructure:"iterations" yaml:"iterations"`
	Warmup     int   `mapstructure:"warmup" yaml:"warmup"`
	Seed       int64 `mapstructure:"seed" yaml:"seed"`
	KeepWarmup bool  `mapstructure:"keep_warmup" yaml:"keep_warmup"`
}

// Check returns an error wrapping ErrInvalidConfig for a bad iteration plan
func (c ConfigBase) Check() error {
	if c.Iterations <= 0 {
		return invalid("Iterations %d must be positive", c.Iterations)
	}
	if c.Warmup < 0 {
		return invalid("Warmup %d must not be negative", c.Warmup)
	}
	if c.Warmup >= c.Iterations {
		return invalid("Warmup %d must be less than iterations %d", c.Warmup, c.Iterations)
	}
	return nil
}

// Retained is the number of draws a complete run records
func (c ConfigBase) Retained() int {
	if c.KeepWarmup {
		return c.Iterations
	}
	return c.Iterations - c.Warmup
}

// ForChain returns a copy seeded for the given chain index
func (c ConfigBase) ForChain(chain int) ConfigBase {
	c.Seed += int64(chain)
	return c
}

// NUTSConfig configures an adaptive NUTS run
type NUTSConfig struct {
	ConfigBase `mapstructure:",squash" yaml:",inline"`

	MaxDepth            int        `mapstructure:"max_depth" yaml:"max_depth"`
	InitStepSize        float64    `mapstructure:"step_size" yaml:"step_size"`
	FindStepSize        bool       `mapstructure:"find_step_size" yaml:"find_step_size"`
	DivergenceThreshold float64    `mapstructure:"divergence_threshold" yaml:"divergence_threshold"`
	Metric              hmc.Metric `mapstructure:"-" yaml:"-"`

	Step hmc.StepConfig `mapstructure:",squash" yaml:",inline"`
	Var  hmc.VarConfig  `mapstructure:",squash" yaml:",inline"`
}

// DefaultNUTSConfig returns 2000 iterations (1000 warmup), max depth 10, an
// initial step size of 1 refined by the step size search, and a diagonal
// metric.
func DefaultNUTSConfig() NUTSConfig {
	return NUTSConfig{
		ConfigBase: ConfigBase{
			Iterations: 2000,
			Warmup:     1000,
		},
		MaxDepth:            10,
		InitStepSize:        1,
		FindStepSize:        true,
		DivergenceThreshold: hmc.DefaultMaxDeltaH,
		Metric:              hmc.DiagMetric,
		Step:                hmc.DefaultStepConfig(),
		Var:                 hmc.DefaultVarConfig(),
	}
}

// Check validates everything before a run starts
func (c NUTSConfig) Check() error {
	if err := c.ConfigBase.Check(); err != nil {
		return err
	}
	if c.MaxDepth <= 0 {
		return invalid("Max depth %d must be positive", c.MaxDepth)
	}
	if !(c.InitStepSize > 0) || math.IsInf(c.InitStepSize, 1) {
		return invalid("Initial step size %v must be positive and finite", c.InitStepSize)
	}
	if !(c.DivergenceThreshold > 0) {
		return invalid("Divergence threshold %v must be positive", c.DivergenceThreshold)
	}
	if c.Metric != hmc.UnitMetric && c.Metric != hmc.DiagMetric {
		return invalid("Unknown metric %d", c.Metric)
	}
	if err := c.Step.Check(); err != nil {
		return invalid("Step size adaptation: %v", err)
	}
	if err := c.Var.Check(); err != nil {
		return invalid("Mass matrix adaptation: %v", err)
	}
	return nil
}

// MHConfig configures a random walk Metropolis-Hastings run
type MHConfig struct {
	ConfigBase `mapstructure:",squash" yaml:",inline"`

	Sigma float64 `mapstructure:"sigma" yaml:"sigma"` // proposal standard deviation
}

// DefaultMHConfig returns the NUTS iteration plan with Sigma=1
func DefaultMHConfig() MHConfig {
	return MHConfig{
		ConfigBase: DefaultNUTSConfig().ConfigBase,
		Sigma:      1,
	}
}

// Check validates everything before a run starts
func (c MHConfig) Check() error {
	if err := c.ConfigBase.Check(); err != nil {
		return err
	}
	if !(c.Sigma > 0) || math.IsInf(c.Sigma, 1) {
		return invalid("Proposal sigma %v must be positive and finite", c.Sigma)
	}
	return nil
}
