package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/pipeline"
)

var runWorkers int

var runCmd = &cobra.Command{
	Use:   "run [contract.json...]",
	Short: "Run contracts through the full pipeline",
	Long: `Processes each contract end to end: validate, compile, sanitize, lint,
materialize. Multiple contracts run concurrently. Every run leaves its
artifact trail under the runs directory and a row in the ledger.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 4, "Concurrent runs when multiple contracts are given")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pl, led, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	cts := make([]*contract.Contract, 0, len(args))
	for _, path := range args {
		ct, err := readContract(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cts = append(cts, ct)
	}

	if len(cts) == 1 {
		outcome, err := pl.Run(cmd.Context(), cts[0])
		if outcome != nil {
			printOutcome(args[0], outcome)
		}
		return err
	}

	outcomes, err := pl.RunBatch(cmd.Context(), cts, runWorkers)
	for i, outcome := range outcomes {
		if outcome != nil {
			printOutcome(args[i], outcome)
		}
	}
	return err
}

func printOutcome(source string, o *pipeline.Outcome) {
	if o.OutDir != "" {
		fmt.Printf("%s: %s (run %s) -> %s\n", source, o.Status, o.RunID, o.OutDir)
		return
	}
	fmt.Printf("%s: %s (run %s)\n", source, o.Status, o.RunID)
}
