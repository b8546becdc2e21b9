package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CraigKelly/gonuts/sampler"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Run chains on a built-in target and report the posterior",
	Long: `sample runs one or more chains of NUTS (or Metropolis-Hastings) on a
built-in target. Every setting can come from a flag, a GONUTS_* environment
variable, or the config file. Draws are written as CSV with --output and the
summary as YAML with --summary ("-" means stdout).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := loadRunConfig(v)
		if err != nil {
			return err
		}

		log, err := newLogger(verbose)
		if err != nil {
			return errors.Wrap(err, "Could not create logger")
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runSample(ctx, rc, log, cmd.OutOrStdout())
	},
}

func init() {
	fs := sampleCmd.Flags()
	fs.StringP("sampler", "s", "nuts", "Sampler to use: nuts or mh")
	fs.IntP("iterations", "n", 2000, "Total iterations per chain, warmup included")
	fs.IntP("warmup", "w", 1000, "Warmup iterations per chain")
	fs.Int64P("seed", "r", 1, "Random seed (chain c uses seed+c)")
	fs.Int("chains", 4, "Number of independent chains")
	fs.Bool("keep-warmup", false, "Keep warmup draws in the output")
	fs.Int("max-depth", 10, "Maximum tree depth")
	fs.Float64("step-size", 1, "Initial step size")
	fs.Bool("find-step-size", true, "Refine the initial step size before warmup")
	fs.Float64("target-accept", 0.8, "Target acceptance statistic for step size adaptation")
	fs.Float64("divergence-threshold", 1000, "Energy error that marks a transition divergent")
	fs.String("metric", "diag", "Mass matrix: unit or diag")
	fs.Float64("sigma", 1, "Proposal standard deviation for mh")
	fs.StringP("target", "t", "normal", "Target: normal, funnel or regression")
	fs.IntP("dim", "d", 2, "Dimension for the normal and funnel targets")
	fs.String("data", "", "Data file for the regression target")
	fs.String("solution", "", "File with the known posterior means and variances")
	fs.Bool("finite-diff", false, "Use numerical gradients instead of the target's own")
	fs.StringP("output", "o", "", "CSV file for the draws")
	fs.String("summary", "-", "YAML file for the summary")
	fs.String("monitor", "", "Serve progress with expvar on this address (e.g. :8000)")

	setDefaults(v)
	if err := bindFlags(v, fs); err != nil {
		panic(fmt.Sprintf("%v", err))
	}
}

// runSample runs the chains described by rc and writes every requested
// output. A summary table always goes to out.
func runSample(ctx context.Context, rc *runConfig, log *zap.SugaredLogger, out io.Writer) error {
	bt, err := buildTarget(rc)
	if err != nil {
		return err
	}

	var mon *monitor
	if rc.Monitor != "" {
		mon = newMonitor(log, rc.Chains, rc.NUTS.Iterations)
		if err := mon.Start(rc.Monitor); err != nil {
			return err
		}
		defer mon.Stop()
	}

	chainOpts := func(chain int) []sampler.Option {
		opts := []sampler.Option{sampler.WithLogger(log.With("chain", chain))}
		if mon != nil {
			opts = append(opts, sampler.WithProgress(mon.Progress(chain)))
		}
		return opts
	}

	log.Infow("Sampling",
		"sampler", rc.Sampler,
		"target", rc.Target,
		"dim", bt.Dim(),
		"chains", rc.Chains,
	)

	var results []*sampler.MCMCResult
	switch rc.Sampler {
	case "mh":
		results, err = sampler.MHChains(ctx, bt, bt.Init, rc.mhConfig(), rc.Chains, chainOpts)
	default:
		results, err = sampler.NUTSChains(ctx, bt, bt.Init, rc.NUTS, rc.Chains, chainOpts)
	}
	if err != nil {
		return err
	}

	rep, err := newRunReport(rc, bt.Names, results, bt.Solution)
	if err != nil {
		return err
	}

	if rc.Output != "" {
		w, err := createOutput(rc.Output)
		if err != nil {
			return err
		}
		err = writeDraws(w, bt.Names, results)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		log.Debugw("Draws written", "file", rc.Output)
	}

	if rc.Summary != "" {
		w, err := createOutput(rc.Summary)
		if err != nil {
			return err
		}
		err = writeReport(w, rep)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	if rc.Summary != "-" {
		printTable(out, rep)
	}
	return nil
}

// printTable writes a short human readable summary
func printTable(out io.Writer, rep *runReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "param\tmean\tsd\tess\t\n")
	for _, p := range rep.Parameters {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.0f\t\n", p.Name, p.Mean, p.StdDev, p.ESS)
	}
	tw.Flush()

	div := 0
	for _, c := range rep.Chains {
		div += c.Divergences
	}
	fmt.Fprintf(out, "%d chains, %d divergent transitions after warmup\n", len(rep.Chains), div)
	if rep.Error != nil {
		fmt.Fprintf(out, "max mean abs error %.4f, max var rel error %.4f\n", rep.Error.MaxMeanAbsError, rep.Error.MaxVarRelError)
	}
}
