package model

import (
	"github.com/pkg/errors"
)

// Solution holds known posterior moments for a target, used to score the
// output of a sampler.
type Solution struct {
	Means     []float64
	Variances []float64
}

// NewSolutionFromFile reads a solution file
func NewSolutionFromFile(filename string) (*Solution, error) {
	data, err := readFile(filename, "solution")
	if err != nil {
		return nil, err
	}

	return NewSolutionFromBuffer(data)
}

// NewSolutionFromBuffer parses the solution format: a parameter count
// followed by one "mean variance" pair per parameter.
func NewSolutionFromBuffer(data []byte) (*Solution, error) {
	text, lineCount := preprocess(data)
	if lineCount < 1 {
		return nil, errors.Errorf("No lines found in solution")
	}

	fr := NewFieldReader(text)
	count, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Could not PARSE solution parameter count")
	}
	if count < 1 {
		return nil, errors.Errorf("Invalid parameter count %d", count)
	}
	if fr.Remain() != 2*count {
		return nil, errors.Errorf("Expected %d values for %d parameters, found %d", 2*count, count, fr.Remain())
	}

	s := &Solution{
		Means:     make([]float64, count),
		Variances: make([]float64, count),
	}
	for i := 0; i < count; i++ {
		if s.Means[i], err = fr.ReadFloat(); err != nil {
			return nil, errors.Wrapf(err, "Could not PARSE mean for parameter %d", i)
		}
		if s.Variances[i], err = fr.ReadFloat(); err != nil {
			return nil, errors.Wrapf(err, "Could not PARSE variance for parameter %d", i)
		}
	}

	return s, s.Check(count)
}

// Check insures that the solution is as correct as can be checked given a
// parameter count
func (s *Solution) Check(dim int) error {
	if len(s.Means) != dim || len(s.Variances) != dim {
		return errors.Errorf("Solution has %d means and %d variances, expected %d", len(s.Means), len(s.Variances), dim)
	}
	for i, v := range s.Variances {
		if v < 0 {
			return errors.Errorf("Solution variance %d is negative: %v", i, v)
		}
	}
	return nil
}

// Error is a helper method to return the entire error suite we offer for the
// given estimated moments against this solution
func (s *Solution) Error(means, variances []float64) (*ErrorSuite, error) {
	return NewErrorSuite(s, means, variances)
}
