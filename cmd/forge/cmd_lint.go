package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/lint"
)

var lintCmd = &cobra.Command{
	Use:   "lint [plan.json]",
	Short: "Run the gate checks against a compiled plan",
	Long: `Evaluates a plan against the purity gate: block content must be pure
fragments, hooks must hold only what they are for, and companion source is
forbidden unless explicitly allowed. Prints the report as JSON and exits
non-zero when the gate would block the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func runLint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
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
	report := lint.Run(p, opts, logger)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return report.Err(opts.FailClose)
}
