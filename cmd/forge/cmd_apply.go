package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/lint"
	"github.com/ndjc/forge/internal/materialize"
)

var applyRunID string

var applyCmd = &cobra.Command{
	Use:   "apply [plan.json]",
	Short: "Materialize a compiled plan into a project tree",
	Long: `Applies a previously compiled plan against its template. The gate
checks run first; a plan that fails them is never applied. Direct plan
application is meant for debugging — the run command is the normal path.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyRunID, "run-id", "", "Run id for the output workspace (default: random)")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	p, err := readPlan(args[0])
	if err != nil {
		return err
	}

	opts := lint.Options{
		FailClose:          cfg.Gate.FailClose,
		AllowCompanionCode: cfg.Gate.AllowCompanionCode,
	}
	if err := lint.Run(p, opts, logger).Err(opts.FailClose); err != nil {
		return err
	}

	runID := applyRunID
	if runID == "" {
		runID = uuid.NewString()
	}
	mat := materialize.New(cfg.Paths.TemplatesDir, cfg.Paths.WorkDir, reg.Critical, logger)
	result, err := mat.Apply(runID, p)
	if err != nil {
		return err
	}
	fmt.Printf("Applied %d replacement(s) (%d critical) to %s\n",
		result.TotalReplacements(), result.CriticalReplacements, mat.OutDir(runID))
	return nil
}
