package sampler

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/gonuts/stats"
)

// DrawStats are the per-iteration diagnostics stored next to each draw
type DrawStats struct {
	LogProb    float64 `yaml:"lp"`
	AcceptStat float64 `yaml:"accept_stat"`
	StepSize   float64 `yaml:"step_size"`
	Depth      int     `yaml:"tree_depth"`
	NLeapfrog  int     `yaml:"n_leapfrog"`
	Divergent  bool    `yaml:"divergent"`
	Turned     bool    `yaml:"turned"`
	Accepted   bool    `yaml:"accepted"` // always true for NUTS
	Energy     float64 `yaml:"energy"`
	Warmup     bool    `yaml:"warmup"`
}

// MCMCResult is the output of one chain. Draws has one row per retained
// iteration and one column per parameter; it is nil when nothing was
// retained (a run cancelled before sampling, for instance).
type MCMCResult struct {
	Sampler string
	Dim     int
	Draws   *mat.Dense
	Stats   []DrawStats

	Divergences       int // during sampling
	WarmupDivergences int
	MeanAcceptStat    float64 // over sampling iterations
	StepSize          float64 // final
	InverseMass       []float64
	WarmupTime        time.Duration
	SamplingTime      time.Duration

	// Stopped is set when the context was cancelled before every iteration
	// ran. The draws up to that point are still valid.
	Stopped bool
}

// NumDraws is the number of retained draws
func (r *MCMCResult) NumDraws() int {
	return len(r.Stats)
}

// Draw returns a copy of row i
func (r *MCMCResult) Draw(i int) []float64 {
	if r.Draws == nil {
		return nil
	}
	return mat.Row(nil, i, r.Draws)
}

// Column returns a copy of every draw of parameter j
func (r *MCMCResult) Column(j int) []float64 {
	if r.Draws == nil {
		return nil
	}
	return mat.Col(nil, j, r.Draws)
}

// ParamSummary is the posterior summary of one parameter
type ParamSummary struct {
	Name   string  `yaml:"name"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"sd"`
	ESS    float64 `yaml:"ess"`
}

// Summary returns mean, standard deviation and effective sample size for
// every parameter. Warmup draws (when kept) are excluded.
func (r *MCMCResult) Summary() []ParamSummary {
	return ChainSummary([]*MCMCResult{r})
}

// postWarmupColumn is Column(j) without rows recorded during warmup
func (r *MCMCResult) postWarmupColumn(j int) []float64 {
	col := r.Column(j)
	if col == nil {
		return nil
	}
	out := col[:0]
	for i, s := range r.Stats {
		if !s.Warmup {
			out = append(out, col[i])
		}
	}
	return out
}

// ChainSummary merges several chains of the same target: means and standard
// deviations are over every post-warmup draw and the ESS is the multi-chain
// estimate over the common length of the chains. Nil entries are skipped.
func ChainSummary(results []*MCMCResult) []ParamSummary {
	kept := make([]*MCMCResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	results = kept
	dim := results[0].Dim
	sums := make([]ParamSummary, dim)

	for j := 0; j < dim; j++ {
		sums[j].Name = ParamName(j)

		var all []float64
		chains := make([][]float64, 0, len(results))
		minLen := math.MaxInt32
		for _, r := range results {
			col := r.postWarmupColumn(j)
			all = append(all, col...)
			chains = append(chains, col)
			if len(col) < minLen {
				minLen = len(col)
			}
		}

		if len(all) == 0 {
			sums[j].Mean, sums[j].StdDev, sums[j].ESS = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		sums[j].Mean, sums[j].StdDev = stat.MeanStdDev(all, nil)

		for c := range chains {
			chains[c] = chains[c][:minLen]
		}
		sums[j].ESS = stats.ESS(chains...)
	}

	return sums
}

// ParamName is the default name of parameter j
func ParamName(j int) string {
	return "q." + strconv.Itoa(j)
}

// builder accumulates a result as a run proceeds
type builder struct {
	res  *MCMCResult
	data []float64

	acceptSum float64
	sampled   int
}

func newBuilder(name string, dim int, capacity int) *builder {
	return &builder{
		res:  &MCMCResult{Sampler: name, Dim: dim, Stats: make([]DrawStats, 0, capacity)},
		data: make([]float64, 0, capacity*dim),
	}
}

// observe updates the run diagnostics for every iteration
func (b *builder) observe(s DrawStats) {
	if s.Warmup {
		if s.Divergent {
			b.res.WarmupDivergences++
		}
		return
	}
	b.sampled++
	b.acceptSum += s.AcceptStat
	if s.Divergent {
		b.res.Divergences++
	}
}

// add appends a retained draw
func (b *builder) add(q []float64, s DrawStats) {
	b.data = append(b.data, q...)
	b.res.Stats = append(b.res.Stats, s)
}

func (b *builder) finish() *MCMCResult {
	n := len(b.res.Stats)
	if n > 0 {
		b.res.Draws = mat.NewDense(n, b.res.Dim, b.data)
	}
	if b.sampled > 0 {
		b.res.MeanAcceptStat = b.acceptSum / float64(b.sampled)
	} else {
		b.res.MeanAcceptStat = math.NaN()
	}
	return b.res
}

// Moments returns the post-warmup sample mean and variance of every
// parameter (NaN when there are no draws).
func (r *MCMCResult) Moments() (means, variances []float64) {
	means = make([]float64, r.Dim)
	variances = make([]float64, r.Dim)
	for j := 0; j < r.Dim; j++ {
		col := r.postWarmupColumn(j)
		if len(col) == 0 {
			means[j], variances[j] = math.NaN(), math.NaN()
			continue
		}
		means[j], variances[j] = stat.MeanVariance(col, nil)
	}
	return
}
