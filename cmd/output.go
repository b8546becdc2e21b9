package cmd

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/CraigKelly/gonuts/model"
	"github.com/CraigKelly/gonuts/sampler"
)

// drawColumns are written after the parameter columns
var drawColumns = []string{"lp__", "accept_stat__", "stepsize__", "treedepth__", "n_leapfrog__", "divergent__", "energy__"}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// writeDraws writes every retained draw of every chain as CSV: a chain
// column, one column per parameter, then the per-draw diagnostics.
func writeDraws(w io.Writer, names []string, results []*sampler.MCMCResult) error {
	cw := csv.NewWriter(w)

	header := append([]string{"chain", "warmup"}, names...)
	header = append(header, drawColumns...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "Could not write CSV header")
	}

	record := make([]string, len(header))
	for c, res := range results {
		for i := 0; i < res.NumDraws(); i++ {
			s := res.Stats[i]
			record = record[:0]
			record = append(record, strconv.Itoa(c), formatBool(s.Warmup))
			for _, x := range res.Draw(i) {
				record = append(record, formatFloat(x))
			}
			record = append(record,
				formatFloat(s.LogProb),
				formatFloat(s.AcceptStat),
				formatFloat(s.StepSize),
				strconv.Itoa(s.Depth),
				strconv.Itoa(s.NLeapfrog),
				formatBool(s.Divergent),
				formatFloat(s.Energy),
			)
			if err := cw.Write(record); err != nil {
				return errors.Wrapf(err, "Could not write draw %d of chain %d", i, c)
			}
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "Could not flush CSV")
}

// chainReport is the per-chain part of the YAML summary
type chainReport struct {
	Chain             int       `yaml:"chain"`
	Draws             int       `yaml:"draws"`
	Divergences       int       `yaml:"divergences"`
	WarmupDivergences int       `yaml:"warmup_divergences"`
	MeanAcceptStat    float64   `yaml:"mean_accept_stat"`
	StepSize          float64   `yaml:"step_size"`
	InverseMass       []float64 `yaml:"inverse_mass,omitempty"`
	WarmupSeconds     float64   `yaml:"warmup_seconds"`
	SamplingSeconds   float64   `yaml:"sampling_seconds"`
	Stopped           bool      `yaml:"stopped,omitempty"`
}

// runReport is the YAML summary document. Config holds the settings of the
// sampler that actually ran.
type runReport struct {
	Sampler    string                 `yaml:"sampler"`
	Target     string                 `yaml:"target"`
	Config     interface{}            `yaml:"config"`
	Metric     string                 `yaml:"metric,omitempty"`
	Parameters []sampler.ParamSummary `yaml:"parameters"`
	Chains     []chainReport          `yaml:"chains"`
	Error      *model.ErrorSuite      `yaml:"error,omitempty"`
}

// newRunReport combines the chains into one report, naming parameters from
// names and scoring against sol when it is known.
func newRunReport(rc *runConfig, names []string, results []*sampler.MCMCResult, sol *model.Solution) (*runReport, error) {
	rep := &runReport{
		Sampler:    rc.Sampler,
		Target:     rc.Target,
		Parameters: sampler.ChainSummary(results),
	}
	if rc.Sampler == "mh" {
		rep.Config = rc.mhConfig()
	} else {
		rep.Config = rc.NUTS
		rep.Metric = rc.NUTS.Metric.String()
	}

	for j := range rep.Parameters {
		if j < len(names) {
			rep.Parameters[j].Name = names[j]
		}
	}

	for c, res := range results {
		rep.Chains = append(rep.Chains, chainReport{
			Chain:             c,
			Draws:             res.NumDraws(),
			Divergences:       res.Divergences,
			WarmupDivergences: res.WarmupDivergences,
			MeanAcceptStat:    res.MeanAcceptStat,
			StepSize:          res.StepSize,
			InverseMass:       res.InverseMass,
			WarmupSeconds:     res.WarmupTime.Seconds(),
			SamplingSeconds:   res.SamplingTime.Seconds(),
			Stopped:           res.Stopped,
		})
	}

	if sol != nil {
		means := make([]float64, len(rep.Parameters))
		variances := make([]float64, len(rep.Parameters))
		for j, p := range rep.Parameters {
			means[j] = p.Mean
			variances[j] = p.StdDev * p.StdDev
		}
		es, err := sol.Error(means, variances)
		if err != nil {
			return nil, err
		}
		rep.Error = es
	}

	return rep, nil
}

// writeReport writes rep as YAML
func writeReport(w io.Writer, rep *runReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return errors.Wrap(err, "Could not encode summary")
	}
	return errors.Wrap(enc.Close(), "Could not finish summary")
}

// createOutput opens filename for writing; "-" is stdout
func createOutput(filename string) (io.WriteCloser, error) {
	if filename == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not create %s", filename)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
