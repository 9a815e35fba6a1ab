package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all environment overrides, e.g.
// QUERYFIRE_CONCURRENCY=32.
const EnvPrefix = "QUERYFIRE"

// ErrHelpRequested is returned when the user requests help via --help.
var ErrHelpRequested = errors.New("help requested")

// Loader resolves configuration with flags > environment > defaults
// precedence.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and the environment into a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			_ = cmd.Usage()
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			_ = cmd.Usage()
			return nil, ErrHelpRequested
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("target", DefaultTarget)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("iterations", DefaultBaseIterations)
	v.SetDefault("metrics_url", "")
	v.SetDefault("load_scale", DefaultLoadScale)
	v.SetDefault("event_limit", DefaultEventLimit)
	v.SetDefault("seed_base", 0)
	v.SetDefault("seed_window", DefaultSeedWindow)
	v.SetDefault("rate", 0)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("result_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.otlp_protocol", "")
	v.SetDefault("tracing.service_name", "queryfire")
	v.SetDefault("tracing.otlp_insecure", false)

	// Nested keys do not round-trip through AutomaticEnv, so bind them
	// explicitly to their flat env names.
	bindEnv(v, "tracing.otlp_endpoint", "OTLP_ENDPOINT")
	bindEnv(v, "tracing.otlp_protocol", "OTLP_PROTOCOL")
	bindEnv(v, "tracing.service_name", "SERVICE_NAME")
	bindEnv(v, "tracing.otlp_insecure", "OTLP_INSECURE")

	if err := bindFlags(v, flagSet); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.MetricsURL = strings.TrimSpace(cfg.MetricsURL)
	cfg.EventLimit = cfg.ClampedEventLimit()

	return cfg, nil
}

func bindEnv(v *viper.Viper, key, envSuffix string) {
	if raw := os.Getenv(EnvPrefix + "_" + envSuffix); raw != "" {
		v.Set(key, raw)
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	return bindErr
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "queryfire",
		Short:         "Drive an event-query endpoint with concurrent cache-stressing load",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	flags.String("target", DefaultTarget, "Query endpoint URL")
	flags.IntP("concurrency", "c", DefaultConcurrency, "Number of concurrent workers")
	flags.IntP("iterations", "i", DefaultBaseIterations, "Base iterations per worker (multiplied by load scale)")
	flags.String("metrics-url", "", "Metrics collector URL (empty disables publishing)")
	flags.Int("load-scale", DefaultLoadScale, "Multiplier applied to base iterations")
	flags.Int("event-limit", DefaultEventLimit, "Requested events per query (clamped to [25,5000])")
	flags.Int("seed-base", 0, "Base value for seed derivation")
	flags.Int("seed-window", DefaultSeedWindow, "Seed cycling window")
	flags.IntP("rate", "r", 0, "Global request starts per second (0 means unlimited)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.String("result-file", "", "Path to write the final run summary as JSON")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
}
