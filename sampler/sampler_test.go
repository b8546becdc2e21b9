package sampler

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/gonuts/hmc"
	"github.com/CraigKelly/gonuts/model"
)

func stdNormal(t testing.TB, dim int) *model.Normal {
	n, err := model.NewStdNormal(dim)
	require.NoError(t, err)
	return n
}

// stiff has curvature 1e6, so a unit step always diverges
var stiff = model.TargetFunc{
	N: 1,
	Fn: func(q, grad []float64) float64 {
		if grad != nil {
			grad[0] = -1e6 * q[0]
		}
		return -0.5 * 1e6 * q[0] * q[0]
	},
}

func smallNUTS(iterations, warmup int) NUTSConfig {
	cfg := DefaultNUTSConfig()
	cfg.Iterations = iterations
	cfg.Warmup = warmup
	cfg.Seed = 42
	return cfg
}

func TestConfigCheck(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(DefaultNUTSConfig().Check())
	assert.NoError(DefaultMHConfig().Check())

	nutsCases := []func(*NUTSConfig){
		func(c *NUTSConfig) { c.Iterations = 0 },
		func(c *NUTSConfig) { c.Warmup = -1 },
		func(c *NUTSConfig) { c.Warmup = c.Iterations },
		func(c *NUTSConfig) { c.MaxDepth = 0 },
		func(c *NUTSConfig) { c.InitStepSize = 0 },
		func(c *NUTSConfig) { c.InitStepSize = math.Inf(1) },
		func(c *NUTSConfig) { c.InitStepSize = math.NaN() },
		func(c *NUTSConfig) { c.DivergenceThreshold = 0 },
		func(c *NUTSConfig) { c.Metric = hmc.Metric(7) },
		func(c *NUTSConfig) { c.Step.Delta = 1.5 },
		func(c *NUTSConfig) { c.Var.WindowBase = 0 },
	}
	target := stdNormal(t, 2)
	for i, f := range nutsCases {
		cfg := DefaultNUTSConfig()
		f(&cfg)
		err := cfg.Check()
		assert.Error(err, "case %d", i)
		assert.Equal(ErrInvalidConfig, errors.Cause(err), "case %d", i)

		res, err := NUTS(context.Background(), target, []float64{0, 0}, cfg)
		assert.Nil(res)
		assert.Equal(ErrInvalidConfig, errors.Cause(err), "case %d", i)
	}

	mh := DefaultMHConfig()
	mh.Sigma = 0
	assert.Equal(ErrInvalidConfig, errors.Cause(mh.Check()))
	mh.Sigma = -1
	_, err := MH(context.Background(), target, []float64{0, 0}, mh)
	assert.Equal(ErrInvalidConfig, errors.Cause(err))
}

func TestConfigRetained(t *testing.T) {
	assert := assert.New(t)

	c := ConfigBase{Iterations: 100, Warmup: 40}
	assert.Equal(60, c.Retained())
	c.KeepWarmup = true
	assert.Equal(100, c.Retained())

	assert.Equal(int64(3), ConfigBase{Seed: 1}.ForChain(2).Seed)
}

func TestBadStart(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	_, err := NUTS(ctx, stdNormal(t, 2), []float64{0}, smallNUTS(10, 5))
	assert.Equal(ErrInvalidConfig, errors.Cause(err))

	halfLine := model.TargetFunc{
		N: 1,
		Fn: func(q, grad []float64) float64 {
			if q[0] < 0 {
				return math.Inf(-1)
			}
			return -q[0]
		},
	}
	_, err = NUTS(ctx, halfLine, []float64{-1}, smallNUTS(10, 5))
	assert.Equal(ErrInvalidConfig, errors.Cause(err))

	_, err = MH(ctx, halfLine, []float64{-1}, DefaultMHConfig())
	assert.Equal(ErrInvalidConfig, errors.Cause(err))

	_, err = NUTS(ctx, nil, []float64{0}, smallNUTS(10, 5))
	assert.Error(err)
}

func TestNUTSEndToEnd(t *testing.T) {
	assert := assert.New(t)

	cfg := smallNUTS(2000, 1000)
	cfg.Metric = hmc.DiagMetric
	cfg.Step.Delta = 0.8
	cfg.MaxDepth = 10

	res, err := NUTS(context.Background(), stdNormal(t, 5), make([]float64, 5), cfg)
	require.NoError(t, err)

	assert.Equal("nuts", res.Sampler)
	assert.False(res.Stopped)
	assert.Equal(1000, res.NumDraws())
	r, c := res.Draws.Dims()
	assert.Equal(1000, r)
	assert.Equal(5, c)
	assert.Equal(0, res.Divergences)

	means, variances := res.Moments()
	for j := 0; j < 5; j++ {
		assert.True(means[j] >= -0.1 && means[j] <= 0.1, "mean[%d] = %v", j, means[j])
		assert.True(variances[j] >= 0.8 && variances[j] <= 1.2, "var[%d] = %v", j, variances[j])
	}

	assert.True(res.StepSize > 0.1 && res.StepSize < 3, "step size %v", res.StepSize)
	assert.True(res.MeanAcceptStat > 0.6 && res.MeanAcceptStat <= 1, "accept %v", res.MeanAcceptStat)
	assert.Len(res.InverseMass, 5)
	for _, v := range res.InverseMass {
		assert.True(v > 0.5 && v < 2, "inverse mass %v", v)
	}

	for _, s := range res.Stats {
		assert.False(s.Warmup)
		assert.True(s.Accepted)
		assert.InDelta(res.StepSize, s.StepSize, 1e-12)
		assert.True(s.Depth <= cfg.MaxDepth)
	}
}

func TestNUTSStandardNormalMoments(t *testing.T) {
	assert := assert.New(t)

	cfg := smallNUTS(11000, 1000)
	cfg.Metric = hmc.UnitMetric
	res, err := NUTS(context.Background(), stdNormal(t, 1), []float64{0.5}, cfg)
	require.NoError(t, err)
	require.Equal(t, 10000, res.NumDraws())

	means, variances := res.Moments()
	assert.InDelta(0.0, means[0], 0.05)
	assert.InDelta(1.0, variances[0], 0.05)
	assert.Equal([]float64{1}, res.InverseMass)
}

func TestNUTSSolution(t *testing.T) {
	assert := assert.New(t)

	target, err := model.NewNormal([]float64{1, -2, 10}, []float64{0.5, 3, 0.1})
	require.NoError(t, err)

	res, err := NUTS(context.Background(), target, []float64{0, 0, 9}, smallNUTS(3000, 1000))
	require.NoError(t, err)

	means, variances := res.Moments()
	es, err := target.Solution().Error(means, variances)
	require.NoError(t, err)
	assert.True(es.MaxMeanAbsError < 0.3, "%+v", es)
	assert.True(es.MaxVarRelError < 0.25, "%+v", es)

	// the adapted inverse mass tracks the posterior variances
	assert.InEpsilon(0.25, res.InverseMass[0], 0.5)
	assert.InEpsilon(9.0, res.InverseMass[1], 0.5)
	assert.InEpsilon(0.01, res.InverseMass[2], 0.5)
}

func TestNUTSReproducible(t *testing.T) {
	assert := assert.New(t)

	run := func(seed int64) *MCMCResult {
		cfg := smallNUTS(300, 150)
		cfg.Seed = seed
		res, err := NUTS(context.Background(), stdNormal(t, 3), []float64{1, 1, 1}, cfg)
		require.NoError(t, err)
		return res
	}

	a, b, c := run(7), run(7), run(8)
	assert.True(mat.Equal(a.Draws, b.Draws))
	assert.Equal(a.Stats, b.Stats)
	assert.False(mat.Equal(a.Draws, c.Draws))
}

func TestNUTSDivergent(t *testing.T) {
	assert := assert.New(t)

	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core).Sugar()

	cfg := smallNUTS(50, 0)
	cfg.FindStepSize = false
	cfg.InitStepSize = 1
	cfg.Metric = hmc.UnitMetric

	res, err := NUTS(context.Background(), stiff, []float64{0.001}, cfg, WithLogger(log))
	require.NoError(t, err)

	assert.Equal(50, res.NumDraws())
	assert.Equal(50, res.Divergences)
	for i := 0; i < res.NumDraws(); i++ {
		assert.Equal([]float64{0.001}, res.Draw(i))
		assert.True(res.Stats[i].Divergent)
	}
	assert.Equal(1, logs.FilterMessage("Divergent transitions after warmup").Len())
}

func TestNUTSFunnelSurvives(t *testing.T) {
	assert := assert.New(t)

	funnel, err := model.NewFunnel(4)
	require.NoError(t, err)

	res, err := NUTS(context.Background(), funnel, []float64{0, 1, 1, 1, 1}, smallNUTS(400, 200))
	require.NoError(t, err)
	assert.Equal(200, res.NumDraws())
	for i := 0; i < res.NumDraws(); i++ {
		for _, x := range res.Draw(i) {
			assert.False(math.IsNaN(x) || math.IsInf(x, 0))
		}
	}
}

func TestNUTSKeepWarmupAndProgress(t *testing.T) {
	assert := assert.New(t)

	cfg := smallNUTS(200, 100)
	cfg.KeepWarmup = true

	var reports []Progress
	res, err := NUTS(context.Background(), stdNormal(t, 2), []float64{0, 0}, cfg,
		WithProgress(func(p Progress) { reports = append(reports, p) }),
		WithLogger(nil),
	)
	require.NoError(t, err)

	assert.Equal(200, res.NumDraws())
	assert.True(res.Stats[0].Warmup)
	assert.True(res.Stats[99].Warmup)
	assert.False(res.Stats[100].Warmup)

	require.Len(t, reports, 200)
	assert.Equal(0, reports[0].Iteration)
	assert.Equal(WarmupPhase, reports[0].Phase)
	assert.Equal(SamplingPhase, reports[199].Phase)
	assert.Equal(200, reports[199].Iterations)
	assert.Equal("warmup", WarmupPhase.String())

	// summaries skip the warmup rows
	means, _ := res.Moments()
	sum := res.Summary()
	require.Len(t, sum, 2)
	assert.InDelta(means[0], sum[0].Mean, 1e-12)
	assert.Equal("q.0", sum[0].Name)
}

func TestNUTSCancel(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := smallNUTS(2000, 1000)
	res, err := NUTS(ctx, stdNormal(t, 2), []float64{0, 0}, cfg, WithProgress(func(p Progress) {
		if p.Iteration == 1099 {
			cancel()
		}
	}))
	require.NoError(t, err)
	assert.True(res.Stopped)
	assert.Equal(100, res.NumDraws())

	done, stop := context.WithCancel(context.Background())
	stop()
	res, err = NUTS(done, stdNormal(t, 2), []float64{0, 0}, cfg)
	require.NoError(t, err)
	assert.True(res.Stopped)
	assert.Equal(0, res.NumDraws())
	assert.Nil(res.Draws)
	assert.True(math.IsNaN(res.MeanAcceptStat))
	assert.Nil(res.Column(0))
}

func TestNUTSRegression(t *testing.T) {
	assert := assert.New(t)
	gen := testGen(t)

	// y = 2x + 1 + N(0, 0.5)
	ds := &model.Dataset{}
	for i := 0; i < 100; i++ {
		x := gen.NormFloat64()
		ds.X = append(ds.X, []float64{x})
		ds.Y = append(ds.Y, 2*x+1+0.5*gen.NormFloat64())
	}
	reg, err := model.NewRegression(ds, 0)
	require.NoError(t, err)

	res, err := NUTS(context.Background(), reg, make([]float64, reg.Dim()), smallNUTS(1500, 750))
	require.NoError(t, err)

	means, _ := res.Moments()
	assert.InDelta(2.0, means[0], 0.2)
	assert.InDelta(1.0, means[1], 0.2)
	assert.InDelta(math.Log(0.5), means[2], 0.25)
}

func TestMHStandardNormal(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultMHConfig()
	cfg.Iterations = 21000
	cfg.Warmup = 1000
	cfg.Seed = 3

	res, err := MH(context.Background(), stdNormal(t, 2), []float64{3, -3}, cfg)
	require.NoError(t, err)
	assert.Equal("mh", res.Sampler)
	assert.Equal(20000, res.NumDraws())
	assert.Equal(0, res.Divergences)
	assert.Equal(1.0, res.StepSize)

	means, variances := res.Moments()
	for j := 0; j < 2; j++ {
		assert.InDelta(0.0, means[j], 0.1)
		assert.InDelta(1.0, variances[j], 0.15)
	}
	assert.True(res.MeanAcceptStat > 0.2 && res.MeanAcceptStat < 0.8, "accept %v", res.MeanAcceptStat)

	accepted := 0
	for _, s := range res.Stats {
		if s.Accepted {
			accepted++
		}
	}
	rate := float64(accepted) / float64(res.NumDraws())
	assert.InDelta(res.MeanAcceptStat, rate, 0.05)
}

func TestMHRejectsOutsideSupport(t *testing.T) {
	assert := assert.New(t)

	halfNormal := model.TargetFunc{
		N: 1,
		Fn: func(q, grad []float64) float64 {
			if q[0] < 0 {
				return math.NaN()
			}
			return -0.5 * q[0] * q[0]
		},
	}

	cfg := DefaultMHConfig()
	cfg.Iterations = 2000
	cfg.Warmup = 100
	res, err := MH(context.Background(), halfNormal, []float64{1}, cfg)
	require.NoError(t, err)

	col := res.Column(0)
	assert.Len(col, 1900)
	for _, x := range col {
		assert.True(x >= 0)
	}
	for _, s := range res.Stats {
		assert.False(math.IsNaN(s.LogProb))
	}
}

func TestMHCancel(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultMHConfig()
	res, err := MH(ctx, stdNormal(t, 1), []float64{0}, cfg, WithProgress(func(p Progress) {
		if p.Iteration == 9 {
			cancel()
		}
	}))
	require.NoError(t, err)
	assert.True(res.Stopped)
	assert.Equal(0, res.NumDraws())
	assert.True(res.WarmupTime >= 0)
}
