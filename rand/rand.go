package rand

import (
	"math"
	mrand "math/rand"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator is the single source of randomness for one sampling chain:
// momentum draws, trajectory directions, multinomial selection and
// Metropolis proposals all read from it. A Generator is not safe for
// concurrent use - give every chain its own.
type Generator struct {
	mt   *mt19937.MT19937
	norm *mrand.Rand // ziggurat normals, driven by mt
}

// NewGenerator returns a 64-bit Mersenne Twister seeded with seed
func NewGenerator(seed int64) (*Generator, error) {
	mt := mt19937.New()
	mt.Seed(seed)
	return wrap(mt), nil
}

// NewGeneratorSlice seeds from a key slice, which is the canonical seeding
// for the MT19937-64 reference output.
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.New("At least one key value is required to seed the generator")
	}

	mt := mt19937.New()
	mt.SeedFromSlice(key)
	return wrap(mt), nil
}

func wrap(mt *mt19937.MT19937) *Generator {
	return &Generator{
		mt:   mt,
		norm: mrand.New(mt),
	}
}

// Int63 provides the same interface as Go's math/rand
func (g *Generator) Int63() int64 {
	return g.mt.Int63()
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users. Result is in [0, 1).
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NormFloat64 returns a standard normal draw
func (g *Generator) NormFloat64() float64 {
	return g.norm.NormFloat64()
}

// Coin is a fair coin flip: true or false with equal probability
func (g *Generator) Coin() bool {
	return g.Int63()&1 == 1
}

// Accept returns true with probability p. Values of p >= 1 always accept and
// values <= 0 (or NaN) never do.
func (g *Generator) Accept(p float64) bool {
	if math.IsNaN(p) || p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return g.Float64() < p
}
