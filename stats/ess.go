package stats

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

func paddedLength(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Autocorrelation returns the normalised autocorrelation of x at lags
// 0..len(x)-1, computed through a zero-padded FFT. A constant series has
// autocorrelation 1 at lag 0 and 0 elsewhere.
func Autocorrelation(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	padded := 2 * paddedLength(n)
	mean := stat.Mean(x, nil)
	centered := make([]float64, padded)
	for i, v := range x {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(padded)
	coeff := fft.Coefficients(nil, centered)
	for i, c := range coeff {
		re, im := real(c), imag(c)
		coeff[i] = complex(re*re+im*im, 0)
	}
	seq := fft.Sequence(nil, coeff)

	if seq[0] == 0 {
		out[0] = 1
		return out
	}
	for i := range out {
		out[i] = seq[i] / seq[0]
	}
	return out
}

// ESS estimates the effective sample size of one scalar quantity from one or
// more chains of equal length, using Geyer's initial monotone sequence over
// the chain-averaged autocovariance and a split of within/between chain
// variance. The estimate is capped at M*N*log10(N). NaN is returned when
// there is not enough data (no chains, fewer than 4 draws) or when the draws
// have zero variance.
func ESS(chains ...[]float64) float64 {
	m := len(chains)
	if m == 0 {
		return math.NaN()
	}
	n := len(chains[0])
	if n < 4 {
		return math.NaN()
	}
	for _, ch := range chains[1:] {
		if len(ch) != n {
			return math.NaN()
		}
	}

	means := make([]float64, m)
	vars := make([]float64, m)
	for i, ch := range chains {
		means[i], vars[i] = stat.MeanVariance(ch, nil)
	}

	w := stat.Mean(vars, nil)
	varEst := float64(n-1) / float64(n) * w
	if m > 1 {
		varEst += stat.Variance(means, nil)
	}
	if varEst <= 0 || math.IsNaN(varEst) {
		return math.NaN()
	}

	// running mean over chains of the autocovariance
	acov := make([]float64, n)
	for i, ch := range chains {
		ac := Autocorrelation(ch)
		inv := 1.0 / float64(i+1)
		for t := range acov {
			acov[t] = inv*ac[t]*vars[i] + float64(i)*inv*acov[t]
		}
	}

	rhoHat := func(t int) float64 {
		return 1 - (w-acov[t])/varEst
	}

	rhoEven := rhoHat(0)
	pHat := rhoEven + rhoHat(1)
	minP := pHat
	tau := minP

	t := 2
	for ; t < n-3 && pHat > 0; t += 2 {
		rhoEven = rhoHat(t)
		pHat = rhoEven + rhoHat(t+1)
		if pHat >= 0 {
			minP = math.Min(minP, pHat)
			tau += minP
		}
	}

	correction := rhoEven
	if rhoEven <= 0 {
		correction = rhoHat(t)
	}

	tau = 2*tau - 1 + correction

	total := float64(n * m)
	return total * math.Min(1/tau, math.Log10(float64(n)))
}
