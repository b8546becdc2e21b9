package sampler

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/gonuts/rand"
)

func testGen(t testing.TB) *rand.Generator {
	gen, err := rand.NewGenerator(99)
	require.NoError(t, err)
	return gen
}

func TestRunChainsNUTS(t *testing.T) {
	assert := assert.New(t)

	cfg := smallNUTS(1000, 500)
	var mu sync.Mutex
	var logged []int
	results, err := NUTSChains(context.Background(), stdNormal(t, 2), []float64{0.5, -0.5}, cfg, 4, func(chain int) []Option {
		mu.Lock()
		logged = append(logged, chain)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.ElementsMatch([]int{0, 1, 2, 3}, logged)

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(500, r.NumDraws())
	}
	// every chain has its own seed
	assert.False(mat.Equal(results[0].Draws, results[1].Draws))

	// chain 2 is the single chain run with Seed+2
	single := cfg
	single.ConfigBase = cfg.ConfigBase.ForChain(2)
	alone, err := NUTS(context.Background(), stdNormal(t, 2), []float64{0.5, -0.5}, single)
	require.NoError(t, err)
	assert.True(mat.Equal(alone.Draws, results[2].Draws))

	sum := ChainSummary(results)
	require.Len(t, sum, 2)
	for _, s := range sum {
		assert.InDelta(0.0, s.Mean, 0.1)
		assert.InDelta(1.0, s.StdDev, 0.1)
		assert.True(s.ESS > 500, "ess %v", s.ESS)
	}
}

func TestRunChainsMH(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultMHConfig()
	cfg.Iterations = 500
	cfg.Warmup = 100
	results, err := MHChains(context.Background(), stdNormal(t, 1), []float64{0}, cfg, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(400, r.NumDraws())
	}
}

func TestRunChainsErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	_, err := RunChains(ctx, 0, func(ctx context.Context, chain int) (*MCMCResult, error) { return nil, nil })
	assert.Equal(ErrInvalidConfig, errors.Cause(err))

	_, err = RunChains(ctx, 2, nil)
	assert.Error(err)

	boom := errors.New("boom")
	results, err := RunChains(ctx, 3, func(ctx context.Context, chain int) (*MCMCResult, error) {
		if chain == 1 {
			return nil, boom
		}
		<-ctx.Done() // the failure cancels the others
		return &MCMCResult{Stopped: true}, nil
	})
	assert.Nil(results)
	assert.Equal(boom, errors.Cause(err))
	assert.Contains(err.Error(), "Chain 1")

	_, err = NUTSChains(ctx, stdNormal(t, 2), []float64{0}, smallNUTS(10, 5), 2, nil)
	assert.Equal(ErrInvalidConfig, errors.Cause(err))
}

func TestChainSummaryEmpty(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(ChainSummary(nil))

	sum := ChainSummary([]*MCMCResult{{Dim: 2}})
	require.Len(t, sum, 2)
	assert.True(sum[0].Mean != sum[0].Mean) // NaN
	assert.Equal("q.1", sum[1].Name)
}

func TestChainSummarySkipsNil(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(ChainSummary([]*MCMCResult{nil, nil}))

	cfg := DefaultMHConfig()
	cfg.Iterations = 300
	cfg.Warmup = 100
	results, err := MHChains(context.Background(), stdNormal(t, 1), []float64{0}, cfg, 2, nil)
	require.NoError(t, err)

	want := ChainSummary(results)
	require.Len(t, want, 1)
	assert.Equal(want, ChainSummary([]*MCMCResult{nil, results[0], nil, results[1]}))
	assert.Equal(ChainSummary(results[1:]), ChainSummary([]*MCMCResult{results[1], nil}))
}
