package model

import (
	"math"

	"github.com/pkg/errors"
)

// ErrorSuite represents all the loss/error functions we use to judge a
// sampler's moment estimates against a Solution. Errors beginning with Mean
// are the mean across all parameters while Max is the maximum value over the
// parameters. So MeanVarRelError is the MEAN over parameters of the relative
// error of the variance estimate.
type ErrorSuite struct {
	MeanMeanAbsError float64 `yaml:"mean_mean_abs_error"`
	MeanVarAbsError  float64 `yaml:"mean_var_abs_error"`
	MeanVarRelError  float64 `yaml:"mean_var_rel_error"`

	MaxMeanAbsError float64 `yaml:"max_mean_abs_error"`
	MaxVarAbsError  float64 `yaml:"max_var_abs_error"`
	MaxVarRelError  float64 `yaml:"max_var_rel_error"`
}

// NewErrorSuite returns an ErrorSuite with all calculated error functions
func NewErrorSuite(sol *Solution, means, variances []float64) (*ErrorSuite, error) {
	if sol == nil {
		return nil, errors.New("No solution to score against")
	}
	dim := len(sol.Means)
	if err := sol.Check(dim); err != nil {
		return nil, err
	}
	if len(means) != dim || len(variances) != dim {
		return nil, errors.Errorf("Estimate count mismatch: %d means, %d variances, %d expected", len(means), len(variances), dim)
	}
	if dim < 1 {
		return nil, errors.Errorf("No parameters to score")
	}

	es := ErrorSuite{}

	var d float64
	for i := 0; i < dim; i++ {
		d = math.Abs(means[i] - sol.Means[i])
		es.MeanMeanAbsError += d
		es.MaxMeanAbsError = math.Max(d, es.MaxMeanAbsError)

		d = math.Abs(variances[i] - sol.Variances[i])
		es.MeanVarAbsError += d
		es.MaxVarAbsError = math.Max(d, es.MaxVarAbsError)

		d = RelError(variances[i], sol.Variances[i])
		es.MeanVarRelError += d
		es.MaxVarRelError = math.Max(d, es.MaxVarRelError)
	}

	fc := float64(dim)
	es.MeanMeanAbsError /= fc
	es.MeanVarAbsError /= fc
	es.MeanVarRelError /= fc

	return &es, nil
}

// RelError is |est - exp| / |exp|, falling back to the absolute error when
// the expected value is (nearly) zero.
func RelError(est, exp float64) float64 {
	const eps = 1e-12
	d := math.Abs(est - exp)
	if math.Abs(exp) < eps {
		return d
	}
	return d / math.Abs(exp)
}
