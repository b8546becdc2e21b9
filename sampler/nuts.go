package sampler

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gonuts/hmc"
	"github.com/CraigKelly/gonuts/model"
	"github.com/CraigKelly/gonuts/rand"
)

// checkStart validates the initial position against the target
func checkStart(target model.LogProber, init []float64) error {
	if err := model.Check(target, init); err != nil {
		return invalid("Initial position: %v", err)
	}
	return nil
}

// NUTS runs one adaptive No-U-Turn chain from init.
//
// The first cfg.Warmup iterations tune the step size by dual averaging and,
// for the diagonal metric, the mass matrix over doubling windows. Every mass
// matrix update re-runs the step size search and restarts the step size
// adaptation; after the last warmup iteration the step size is frozen at its
// averaged value. The remaining iterations sample with fixed tuning.
//
// Configuration problems are returned before any iteration runs and have
// ErrInvalidConfig as their cause. Divergences are counted, not returned. If
// ctx is cancelled the run stops between iterations and the partial result
// comes back with Stopped set and a nil error.
func NUTS(ctx context.Context, target model.Target, init []float64, cfg NUTSConfig, opts ...Option) (*MCMCResult, error) {
	o := newRunOptions(opts)

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if err := checkStart(target, init); err != nil {
		return nil, err
	}

	gen, err := rand.NewGenerator(cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "Could not create generator")
	}

	dim := target.Dim()
	handler, err := hmc.NewMomentumHandler(cfg.Metric, dim)
	if err != nil {
		return nil, invalid("%v", err)
	}
	varAdapter, err := hmc.NewVarAdapter(handler, cfg.Warmup, cfg.Var)
	if err != nil {
		return nil, invalid("%v", err)
	}

	z := hmc.NewPoint(dim)
	copy(z.Q, init)
	z.LogProb = target.LogProbGrad(z.Q, z.Grad)

	eps := cfg.InitStepSize
	if cfg.FindStepSize {
		eps = findStepSize(o, target, handler, gen, z, eps)
	}
	stepAdapter, err := hmc.NewStepAdapter(cfg.Step, eps)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if cfg.Warmup == 0 {
		stepAdapter.Finalize()
	}

	o.log.Infow("Starting NUTS",
		"dim", dim,
		"iterations", cfg.Iterations,
		"warmup", cfg.Warmup,
		"metric", cfg.Metric.String(),
		"step_size", eps,
		"seed", cfg.Seed,
		"window_ends", varAdapter.WindowEnds(),
	)

	b := newBuilder("nuts", dim, cfg.Retained())
	in := &hmc.TreeInput{
		Target:    target,
		Handler:   handler,
		Gen:       gen,
		MaxDepth:  cfg.MaxDepth,
		MaxDeltaH: cfg.DivergenceThreshold,
		Q:         z.Q,
		P:         z.P,
		Grad:      z.Grad,
	}

	start := time.Now()
	phaseStart := start
	for i := 0; i < cfg.Iterations; i++ {
		if ctx.Err() != nil {
			b.res.Stopped = true
			o.log.Infow("NUTS cancelled", "iteration", i, "reason", ctx.Err().Error())
			break
		}
		if i == cfg.Warmup {
			b.res.WarmupTime = time.Since(phaseStart)
			phaseStart = time.Now()
		}
		warmup := i < cfg.Warmup

		handler.Sample(gen, z.P)
		in.StepSize = stepAdapter.StepSize()
		in.LogProb = z.LogProb

		out, err := hmc.Transition(in)
		if err != nil {
			return nil, errors.Wrapf(err, "Transition failed at iteration %d", i)
		}

		copy(z.Q, out.Proposal)
		copy(z.Grad, out.Grad)
		z.LogProb = out.LogProb

		ds := DrawStats{
			LogProb:    out.LogProb,
			AcceptStat: out.AcceptStat,
			StepSize:   in.StepSize,
			Depth:      out.Depth,
			NLeapfrog:  out.NLeapfrog,
			Divergent:  out.Divergent,
			Turned:     out.Turned,
			Accepted:   true,
			Energy:     out.Energy,
			Warmup:     warmup,
		}
		if out.Divergent {
			o.log.Debugw("Divergent transition", "iteration", i, "phase", phaseOf(warmup).String(), "step_size", in.StepSize)
		}

		if warmup {
			stepAdapter.Observe(out.AcceptStat)

			updated, err := varAdapter.Observe(z.Q)
			if err != nil {
				return nil, errors.Wrapf(err, "Mass matrix adaptation failed at iteration %d", i)
			}
			if updated {
				eps := findStepSize(o, target, handler, gen, z, stepAdapter.StepSize())
				if err := stepAdapter.Restart(eps); err != nil {
					return nil, errors.Wrapf(err, "Step size restart failed at iteration %d", i)
				}
				o.log.Debugw("Mass matrix updated",
					"iteration", i,
					"inverse_mass", handler.InverseMass(),
					"step_size", eps,
				)
			}

			if i == cfg.Warmup-1 {
				final := stepAdapter.Finalize()
				o.log.Infow("Warmup complete",
					"step_size", final,
					"divergences", b.res.WarmupDivergences+boolInt(out.Divergent),
					"elapsed", time.Since(start).String(),
				)
			}
		}

		b.observe(ds)
		if !warmup || cfg.KeepWarmup {
			b.add(z.Q, ds)
		}
		o.report(Progress{Iteration: i, Iterations: cfg.Iterations, Phase: phaseOf(warmup), Stats: ds})
	}

	if b.sampled > 0 {
		b.res.SamplingTime = time.Since(phaseStart)
	} else if b.res.WarmupTime == 0 {
		b.res.WarmupTime = time.Since(phaseStart)
	}
	b.res.StepSize = stepAdapter.StepSize()
	b.res.InverseMass = handler.InverseMass()

	res := b.finish()
	logFinish(o, res, b.sampled)
	return res, nil
}

// findStepSize runs the step size search, keeping eps when it fails
func findStepSize(o *runOptions, target model.Target, h *hmc.MomentumHandler, gen *rand.Generator, z *hmc.Point, eps float64) float64 {
	found, err := hmc.FindReasonableStepSize(target, h, gen, z, eps)
	if err != nil {
		o.log.Warnw("Step size search failed, keeping previous step size", "step_size", eps, "error", err)
		return eps
	}
	return found
}

func phaseOf(warmup bool) Phase {
	if warmup {
		return WarmupPhase
	}
	return SamplingPhase
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// logFinish writes the end-of-run summary and the divergence warning
func logFinish(o *runOptions, res *MCMCResult, sampled int) {
	o.log.Infow("Sampling complete",
		"sampler", res.Sampler,
		"draws", res.NumDraws(),
		"divergences", res.Divergences,
		"mean_accept_stat", res.MeanAcceptStat,
		"step_size", res.StepSize,
		"warmup_time", res.WarmupTime.String(),
		"sampling_time", res.SamplingTime.String(),
		"stopped", res.Stopped,
	)

	if sampled > 0 {
		rate := float64(res.Divergences) / float64(sampled)
		if rate > divergenceWarnRate {
			o.log.Warnw("Divergent transitions after warmup",
				"divergences", res.Divergences,
				"iterations", sampled,
				"rate", rate,
			)
		}
	}
}
