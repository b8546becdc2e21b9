package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/CraigKelly/gonuts/hmc"
	"github.com/CraigKelly/gonuts/sampler"
)

// runConfig is everything the sample command reads from flags, environment
// and the config file
type runConfig struct {
	Sampler    string  `mapstructure:"sampler"`
	Chains     int     `mapstructure:"chains"`
	Metric     string  `mapstructure:"metric"`
	Sigma      float64 `mapstructure:"sigma"`
	Target     string  `mapstructure:"target"`
	Dim        int     `mapstructure:"dim"`
	Data       string  `mapstructure:"data"`
	Solution   string  `mapstructure:"solution"`
	FiniteDiff bool    `mapstructure:"finite_diff"`
	Output     string  `mapstructure:"output"`
	Summary    string  `mapstructure:"summary"`
	Monitor    string  `mapstructure:"monitor"`

	NUTS sampler.NUTSConfig `mapstructure:",squash"`
}

// setDefaults registers the default of every key
func setDefaults(v *viper.Viper) {
	nuts := sampler.DefaultNUTSConfig()
	mh := sampler.DefaultMHConfig()

	v.SetDefault("sampler", "nuts")
	v.SetDefault("chains", 4)
	v.SetDefault("metric", nuts.Metric.String())
	v.SetDefault("sigma", mh.Sigma)
	v.SetDefault("target", "normal")
	v.SetDefault("dim", 2)
	v.SetDefault("data", "")
	v.SetDefault("solution", "")
	v.SetDefault("finite_diff", false)
	v.SetDefault("output", "")
	v.SetDefault("summary", "-")
	v.SetDefault("monitor", "")

	v.SetDefault("iterations", nuts.Iterations)
	v.SetDefault("warmup", nuts.Warmup)
	v.SetDefault("seed", int64(1))
	v.SetDefault("keep_warmup", false)
	v.SetDefault("max_depth", nuts.MaxDepth)
	v.SetDefault("step_size", nuts.InitStepSize)
	v.SetDefault("find_step_size", nuts.FindStepSize)
	v.SetDefault("divergence_threshold", nuts.DivergenceThreshold)

	v.SetDefault("target_accept", nuts.Step.Delta)
	v.SetDefault("gamma", nuts.Step.Gamma)
	v.SetDefault("t0", nuts.Step.T0)
	v.SetDefault("kappa", nuts.Step.Kappa)

	v.SetDefault("init_buffer", nuts.Var.InitBuffer)
	v.SetDefault("term_buffer", nuts.Var.TermBuffer)
	v.SetDefault("window_base", nuts.Var.WindowBase)
}

// bindFlags makes every flag in fs override the key of the same name
// (dashes become underscores)
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.Replace(f.Name, "-", "_", -1)
		err = v.BindPFlag(key, f)
	})
	return err
}

// loadRunConfig unmarshals v and validates the sampler settings
func loadRunConfig(v *viper.Viper) (*runConfig, error) {
	rc := &runConfig{}
	if err := v.Unmarshal(rc); err != nil {
		return nil, errors.Wrap(err, "Could not decode configuration")
	}

	metric, err := hmc.ParseMetric(rc.Metric)
	if err != nil {
		return nil, err
	}
	rc.NUTS.Metric = metric
	rc.Sampler = strings.ToLower(strings.TrimSpace(rc.Sampler))
	rc.Target = strings.ToLower(strings.TrimSpace(rc.Target))

	if rc.Chains < 1 {
		return nil, errors.Errorf("Chain count %d must be positive", rc.Chains)
	}

	switch rc.Sampler {
	case "nuts":
		err = rc.NUTS.Check()
	case "mh":
		err = rc.mhConfig().Check()
	default:
		err = errors.Errorf("Unknown sampler %q (expected nuts or mh)", rc.Sampler)
	}
	if err != nil {
		return nil, err
	}

	return rc, nil
}

func (rc *runConfig) mhConfig() sampler.MHConfig {
	return sampler.MHConfig{
		ConfigBase: rc.NUTS.ConfigBase,
		Sigma:      rc.Sigma,
	}
}
