package sampler

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/CraigKelly/gonuts/model"
)

// ChainFunc runs a single chain. chain is the 0-based chain index; use
// ConfigBase.ForChain to derive its seed.
type ChainFunc func(ctx context.Context, chain int) (*MCMCResult, error)

// RunChains runs n independent chains concurrently and returns their results
// in chain order. Chains share nothing, so the only synchronisation is the
// final join. The first chain to fail cancels the others and its error is
// returned.
func RunChains(ctx context.Context, n int, fn ChainFunc) ([]*MCMCResult, error) {
	if n < 1 {
		return nil, invalid("Chain count %d must be positive", n)
	}
	if fn == nil {
		return nil, errors.New("No chain function supplied")
	}

	results := make([]*MCMCResult, n)
	g, gctx := errgroup.WithContext(ctx)

	for c := 0; c < n; c++ {
		c := c
		g.Go(func() error {
			res, err := fn(gctx, c)
			if err != nil {
				return errors.Wrapf(err, "Chain %d failed", c)
			}
			results[c] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// NUTSChains runs n NUTS chains from the same initial position, chain c
// seeded with cfg.Seed + c. opts is called once per chain so each can get
// its own logger or progress callback; it may be nil.
func NUTSChains(ctx context.Context, target model.Target, init []float64, cfg NUTSConfig, n int, opts func(chain int) []Option) ([]*MCMCResult, error) {
	return RunChains(ctx, n, func(ctx context.Context, chain int) (*MCMCResult, error) {
		c := cfg
		c.ConfigBase = cfg.ConfigBase.ForChain(chain)
		var o []Option
		if opts != nil {
			o = opts(chain)
		}
		return NUTS(ctx, target, init, c, o...)
	})
}

// MHChains is NUTSChains for Metropolis-Hastings
func MHChains(ctx context.Context, target model.LogProber, init []float64, cfg MHConfig, n int, opts func(chain int) []Option) ([]*MCMCResult, error) {
	return RunChains(ctx, n, func(ctx context.Context, chain int) (*MCMCResult, error) {
		c := cfg
		c.ConfigBase = cfg.ConfigBase.ForChain(chain)
		var o []Option
		if opts != nil {
			o = opts(chain)
		}
		return MH(ctx, target, init, c, o...)
	})
}
