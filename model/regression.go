package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Dataset is a design matrix X (one row per observation) and response Y
type Dataset struct {
	X [][]float64
	Y []float64
}

// Features is the number of columns in X
func (d *Dataset) Features() int {
	if len(d.X) < 1 {
		return 0
	}
	return len(d.X[0])
}

// ReadDataset parses the regression data format:
//
//	c optional comment lines
//	<rows> <features>
//	y x_1 ... x_k
//	...
func ReadDataset(data []byte) (*Dataset, error) {
	text, lineCount := preprocess(data)
	if lineCount < 2 {
		return nil, errors.Errorf("Invalid data: need a header and at least one row, found %d lines", lineCount)
	}

	fr := NewFieldReader(text)

	rows, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Error reading row count")
	}
	feats, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Error reading feature count")
	}
	if rows < 1 || feats < 1 {
		return nil, errors.Errorf("Invalid shape %d x %d", rows, feats)
	}
	if fr.Remain() != rows*(feats+1) {
		return nil, errors.Errorf("Expected %d values for %d rows, found %d", rows*(feats+1), rows, fr.Remain())
	}

	ds := &Dataset{
		X: make([][]float64, rows),
		Y: make([]float64, rows),
	}
	for i := 0; i < rows; i++ {
		ds.Y[i], err = fr.ReadFloat()
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading response on row %d", i)
		}
		ds.X[i], err = fr.ReadFloats(feats)
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading features on row %d", i)
		}
	}

	return ds, nil
}

// ReadDatasetFile reads a dataset from disk
func ReadDatasetFile(filename string) (*Dataset, error) {
	data, err := readFile(filename, "dataset")
	if err != nil {
		return nil, err
	}
	return ReadDataset(data)
}

// Regression is Bayesian linear regression
//
//	y_i ~ N(w . x_i + b, sigma)
//
// with N(0, PriorScale) priors on w, b and log(sigma). The parameter vector
// is w_1..w_k, b, log(sigma) so every coordinate is unconstrained.
type Regression struct {
	Data       *Dataset
	PriorScale float64
	prior      distuv.Normal
}

// NewRegression creates the model over ds. A non-positive priorScale
// defaults to 5.
func NewRegression(ds *Dataset, priorScale float64) (*Regression, error) {
	if ds == nil || len(ds.Y) < 1 || len(ds.X) != len(ds.Y) {
		return nil, errors.New("Regression requires a non-empty dataset")
	}
	k := ds.Features()
	for i, row := range ds.X {
		if len(row) != k {
			return nil, errors.Errorf("Row %d has %d features, expected %d", i, len(row), k)
		}
	}
	if !(priorScale > 0) {
		priorScale = 5
	}

	return &Regression{
		Data:       ds,
		PriorScale: priorScale,
		prior:      distuv.Normal{Mu: 0, Sigma: priorScale},
	}, nil
}

// Dim implements LogProber
func (r *Regression) Dim() int {
	return r.Data.Features() + 2
}

// LogProb implements LogProber
func (r *Regression) LogProb(q []float64) float64 {
	return r.eval(q, nil)
}

// LogProbGrad implements Target
func (r *Regression) LogProbGrad(q, grad []float64) float64 {
	return r.eval(q, grad)
}

func (r *Regression) eval(q, grad []float64) float64 {
	k := r.Data.Features()
	w, b, logSigma := q[:k], q[k], q[k+1]

	lp := 0.0
	for _, p := range q {
		lp += r.prior.LogProb(p)
	}

	invVar := math.Exp(-2 * logSigma)
	n := float64(len(r.Data.Y))

	if grad != nil {
		s2 := r.PriorScale * r.PriorScale
		for i, p := range q {
			grad[i] = -p / s2
		}
		grad[k+1] -= n
	}

	sumSq := 0.0
	for i, x := range r.Data.X {
		pred := b
		for j, xj := range x {
			pred += w[j] * xj
		}
		resid := r.Data.Y[i] - pred
		sumSq += resid * resid

		if grad != nil {
			for j, xj := range x {
				grad[j] += resid * xj * invVar
			}
			grad[k] += resid * invVar
		}
	}

	if grad != nil {
		grad[k+1] += sumSq * invVar
	}

	lp += -n*logSigma - 0.5*sumSq*invVar - 0.5*n*math.Log(2*math.Pi)
	return lp
}
