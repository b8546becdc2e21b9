package sampler

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gonuts/model"
	"github.com/CraigKelly/gonuts/rand"
)

// MH runs one random walk Metropolis-Hastings chain from init. Every
// coordinate is perturbed by Normal(0, Sigma) noise and the candidate is
// accepted when log(u) <= lp(candidate) - lp(current). Candidates with a
// non-finite log density are always rejected. Warmup iterations are run
// the same way as sampling iterations; nothing is adapted. Errors and
// cancellation behave as for NUTS.
func MH(ctx context.Context, target model.LogProber, init []float64, cfg MHConfig, opts ...Option) (*MCMCResult, error) {
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
	curr := make([]float64, dim)
	cand := make([]float64, dim)
	copy(curr, init)
	currLP := target.LogProb(curr)

	o.log.Infow("Starting Metropolis-Hastings",
		"dim", dim,
		"iterations", cfg.Iterations,
		"warmup", cfg.Warmup,
		"sigma", cfg.Sigma,
		"seed", cfg.Seed,
	)

	b := newBuilder("mh", dim, cfg.Retained())
	accepted := 0

	phaseStart := time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		if ctx.Err() != nil {
			b.res.Stopped = true
			o.log.Infow("Metropolis-Hastings cancelled", "iteration", i, "reason", ctx.Err().Error())
			break
		}
		if i == cfg.Warmup {
			b.res.WarmupTime = time.Since(phaseStart)
			phaseStart = time.Now()
		}
		warmup := i < cfg.Warmup

		for j := range cand {
			cand[j] = curr[j] + cfg.Sigma*gen.NormFloat64()
		}
		candLP := target.LogProb(cand)

		ds := DrawStats{StepSize: cfg.Sigma, Warmup: warmup}
		if !math.IsNaN(candLP) && !math.IsInf(candLP, 0) {
			logAlpha := candLP - currLP
			ds.AcceptStat = math.Min(1, math.Exp(logAlpha))
			ds.Accepted = math.Log(gen.Float64()) <= logAlpha
		}
		if ds.Accepted {
			curr, cand = cand, curr
			currLP = candLP
			accepted++
		}
		ds.LogProb = currLP
		ds.Energy = -currLP

		b.observe(ds)
		if !warmup || cfg.KeepWarmup {
			b.add(curr, ds)
		}
		o.report(Progress{Iteration: i, Iterations: cfg.Iterations, Phase: phaseOf(warmup), Stats: ds})
	}

	if b.sampled > 0 {
		b.res.SamplingTime = time.Since(phaseStart)
	} else if b.res.WarmupTime == 0 {
		b.res.WarmupTime = time.Since(phaseStart)
	}
	b.res.StepSize = cfg.Sigma

	res := b.finish()
	o.log.Debugw("Metropolis-Hastings acceptance", "accepted", accepted)
	logFinish(o, res, b.sampled)
	return res, nil
}
