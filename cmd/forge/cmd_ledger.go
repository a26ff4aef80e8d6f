package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/audit"
	"github.com/ndjc/forge/internal/ledger"
)

var ledgerLimit int

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the run history",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runLedgerList,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run's summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerShow,
}

func init() {
	ledgerListCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 20, "How many runs to list")
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	led, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		return err
	}
	defer led.Close()

	runs, err := led.Recent(ledgerLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTEMPLATE\tPACKAGE\tSTATUS\tCRITICAL\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RunID, r.Template, r.PackageID, r.Status,
			r.CriticalReplacements, r.StartedAt.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Prefer the full on-disk summary; fall back to the ledger row when the
	// run directory has been cleaned up.
	if sum, err := audit.ReadSummary(cfg.Paths.RunsDir, args[0]); err == nil {
		out, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	led, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		return err
	}
	defer led.Close()
	row, err := led.Get(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
