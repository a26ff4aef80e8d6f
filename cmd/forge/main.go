package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ndjc/forge/internal/config"
	"github.com/ndjc/forge/internal/ledger"
	"github.com/ndjc/forge/internal/lint"
	"github.com/ndjc/forge/internal/pipeline"
	"github.com/ndjc/forge/internal/rate"
	"github.com/ndjc/forge/internal/registry"
	"github.com/ndjc/forge/internal/validate"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - contract-driven Android app materializer",
	Long: `forge turns a build contract into a ready-to-build Android project.

A contract names a template and fills its anchors: text values, block
fragments, lists, feature flags and Gradle settings. forge validates the
contract, compiles it into a plan, gates the plan through a fail-closed
linter and materializes the template with every marker replaced.

Each run leaves a complete artifact trail and a ledger row, so any output
can be traced back to the exact contract that produced it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "forge.yaml", "Path to the configuration file")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(watchCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.Paths.RegistryPath == "" {
		return registry.Default(), nil
	}
	return registry.Load(cfg.Paths.RegistryPath)
}

func limitsFrom(cfg *config.Config) validate.Limits {
	return validate.Limits{
		MaxFiles:       cfg.Limits.MaxFiles,
		MaxFileKB:      cfg.Limits.MaxFileKB,
		MaxAnchorBytes: cfg.Limits.MaxAnchorBytes,
	}
}

// buildPipeline assembles the full pipeline from configuration. The caller
// owns the returned ledger handle.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *ledger.Ledger, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}
	led, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	pl := pipeline.New(pipeline.Options{
		Registry: reg,
		Limits:   limitsFrom(cfg),
		Gate: lint.Options{
			FailClose:          cfg.Gate.FailClose,
			AllowCompanionCode: cfg.Gate.AllowCompanionCode,
		},
		TemplatesDir: cfg.Paths.TemplatesDir,
		RunsDir:      cfg.Paths.RunsDir,
		WorkDir:      cfg.Paths.WorkDir,
		Ledger:       led,
		Limiter:      rate.New(cfg.Rate.MaxRuns, time.Duration(cfg.Rate.WindowSeconds)*time.Second),
		Log:          logger,
	})
	return pl, led, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
