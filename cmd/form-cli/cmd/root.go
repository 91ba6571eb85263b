// file: cmd/form-cli/cmd/root.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ui-conditions/config"
	"ui-conditions/internal/conditions"
	"ui-conditions/internal/logger"
	"ui-conditions/internal/metrics"
	"ui-conditions/internal/tester"
)

// settings resolves the global flags, falling back to UICOND_* environment
// variables (UICOND_CONFIG, UICOND_LOG_LEVEL, UICOND_METRICS).
var settings = viper.New()

// AddCommands adds all the subcommands and the global flags to the root command.
func AddCommands(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a config file (YAML or JSON)")
	flags.String("log-level", "", "Engine log level: debug, info, warn, error (default: no logging)")
	flags.Bool("metrics", false, "Collect engine metrics and print a summary")
	bindFlags(flags)

	root.AddCommand(lintCmd)
	root.AddCommand(checkCmd)
	root.AddCommand(testCmd)
	root.AddCommand(scaffoldCmd)
}

func bindFlags(flags *pflag.FlagSet) {
	settings.SetEnvPrefix("UICOND")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		settings.BindPFlag(f.Name, f)
	})
}

// loadConfig reads the config file when one is set, defaults otherwise,
// and applies the flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := settings.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyOverrides(settings.GetString("log-level"), settings.GetBool("metrics"))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newTester builds a tester wired to the configured logger, metrics and
// engine options. Without a config file or --log-level the engine is silent,
// so command output stays machine readable.
func newTester(verbose bool, parallel int) (*tester.Tester, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewNopLogger()
	if settings.GetString("config") != "" || settings.GetString("log-level") != "" {
		if log, err = logger.NewLogger(&cfg.Logging); err != nil {
			return nil, err
		}
	}

	t := tester.New(log, verbose, parallel)
	t.Options = conditions.OptionsFromConfig(cfg.Conditions)
	if cfg.Metrics.Enabled {
		m, err := metrics.NewMetrics(prometheus.NewRegistry(), cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		t.Metrics = m
	}
	return t, nil
}

// printMetrics writes the engine counters collected during the run.
func printMetrics(cmd *cobra.Command, t *tester.Tester) {
	if t.Metrics == nil {
		return
	}
	evaluations, failures := t.Metrics.GetStats()
	fmt.Fprintf(cmd.ErrOrStderr(), "\n--- METRICS ---\nEvaluations: %d, Validation failures: %d\n", evaluations, failures)
}
