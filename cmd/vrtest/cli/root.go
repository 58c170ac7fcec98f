// Package cli implements the vrtest Cobra command tree: a root command
// carrying persistent configuration flags, a `run` subcommand driving
// the parallel test runner end to end, and a `baseline` command group
// for direct baseline-store operations, matching the teacher's
// single-binary, flag-driven CLI shape (main.go's parseArgs) adapted
// to Cobra the way inference-sim-inference-sim structures its cmd/
// package.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vrtest-dev/vrtest/internal/config"
)

var (
	configPath  string
	workspace   string
	logLevel    string
	logJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "vrtest",
	Short: "Visual regression testing engine",
}

// Execute runs the command tree; main.go's only job is to call this
// and translate a returned error into a process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional YAML config file")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "overrides the workspace directory (baselines, artifacts, cache)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured JSON logs instead of the console encoder")

	rootCmd.AddCommand(runCmd, baselineCmd)
}

// loadConfig loads and overlays the persistent flags onto the static
// configuration, the same layering main.go's parseArgs/config.Load
// would apply: file, then env, then flags (flags win).
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}
	return cfg, nil
}

// newLogger builds a zap logger from the persistent --log-level/--log-json
// flags, matching the teacher's go.uber.org/zap dependency.
func newLogger() (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("vrtest: invalid --log-level %q: %w", logLevel, err)
	}

	zcfg := zap.NewProductionConfig()
	if !logJSON {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("vrtest: building logger: %w", err)
	}
	return logger.Sugar(), nil
}
