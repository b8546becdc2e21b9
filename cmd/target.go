package cmd

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/CraigKelly/gonuts/model"
)

// builtTarget is a target plus what the CLI needs to report on it
type builtTarget struct {
	model.Target
	Names    []string
	Init     []float64
	Solution *model.Solution // nil when the moments are unknown
}

// buildTarget constructs the target named in rc
func buildTarget(rc *runConfig) (*builtTarget, error) {
	var bt builtTarget

	switch rc.Target {
	case "normal":
		n, err := model.NewStdNormal(rc.Dim)
		if err != nil {
			return nil, err
		}
		bt.Target = n
		bt.Solution = n.Solution()
		bt.Names = indexedNames("q", rc.Dim)

	case "funnel":
		f, err := model.NewFunnel(rc.Dim - 1)
		if err != nil {
			return nil, err
		}
		bt.Target = f
		bt.Names = append([]string{"v"}, indexedNames("x", f.K)...)

	case "regression":
		if rc.Data == "" {
			return nil, errors.New("The regression target needs a data file")
		}
		ds, err := model.ReadDatasetFile(rc.Data)
		if err != nil {
			return nil, err
		}
		r, err := model.NewRegression(ds, 0)
		if err != nil {
			return nil, err
		}
		bt.Target = r
		bt.Names = append(indexedNames("w", ds.Features()), "b", "log_sigma")

	default:
		return nil, errors.Errorf("Unknown target %q (expected normal, funnel or regression)", rc.Target)
	}

	if rc.Solution != "" {
		sol, err := model.NewSolutionFromFile(rc.Solution)
		if err != nil {
			return nil, err
		}
		if err := sol.Check(bt.Dim()); err != nil {
			return nil, errors.Wrapf(err, "Solution %s does not fit the target", rc.Solution)
		}
		bt.Solution = sol
	}

	if rc.FiniteDiff {
		bt.Target = model.FiniteDiff{LogProber: bt.Target}
	}

	bt.Init = make([]float64, bt.Dim())
	return &bt, nil
}

// indexedNames returns prefix.1 .. prefix.n
func indexedNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = prefix + "." + strconv.Itoa(i+1)
	}
	return names
}
