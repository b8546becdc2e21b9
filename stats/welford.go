package stats

import (
	"github.com/pkg/errors"
)

// ErrTooFewSamples is returned when a variance is requested before at least
// two observations have been folded in.
var ErrTooFewSamples = errors.New("At least 2 samples are required for a variance estimate")

// WelfordVar estimates the per-component mean and sample variance of a
// stream of vectors with Welford's online algorithm. No observations are
// stored: each Update is O(d).
type WelfordVar struct {
	n    int64
	mean []float64
	m2   []float64 // running sum of squared deviations
}

// NewWelfordVar creates an estimator for vectors of length dim
func NewWelfordVar(dim int) *WelfordVar {
	return &WelfordVar{
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

// Dim is the vector length this estimator accepts
func (w *WelfordVar) Dim() int {
	return len(w.mean)
}

// N is the number of observations seen since the last reset
func (w *WelfordVar) N() int64 {
	return w.n
}

// Update folds x into the running statistics
func (w *WelfordVar) Update(x []float64) error {
	if len(x) != len(w.mean) {
		return errors.Errorf("Observation has length %d, estimator expects %d", len(x), len(w.mean))
	}

	w.n++
	inv := 1.0 / float64(w.n)
	for i, xi := range x {
		delta := xi - w.mean[i]
		w.mean[i] += inv * delta
		w.m2[i] += delta * (xi - w.mean[i])
	}

	return nil
}

// Mean returns a copy of the running mean
func (w *WelfordVar) Mean() []float64 {
	cp := make([]float64, len(w.mean))
	copy(cp, w.mean)
	return cp
}

// Variance returns the unbiased (n-1) sample variance of each component
func (w *WelfordVar) Variance() ([]float64, error) {
	if w.n < 2 {
		return nil, ErrTooFewSamples
	}

	v := make([]float64, len(w.m2))
	denom := float64(w.n - 1)
	for i, m := range w.m2 {
		v[i] = m / denom
	}
	return v, nil
}

// Reset clears all state; equivalent to a freshly constructed estimator.
func (w *WelfordVar) Reset() {
	w.n = 0
	for i := range w.mean {
		w.mean[i] = 0
		w.m2[i] = 0
	}
}
