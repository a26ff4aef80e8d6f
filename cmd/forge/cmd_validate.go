package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [contract.json]",
	Short: "Check a contract without running it",
	Long: `Runs the full validation gauntlet (schema, limits, security, paths,
completeness) against a contract and prints the findings as JSON.

Exits non-zero when the contract would be rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	ct, err := readContract(args[0])
	if err != nil {
		return err
	}

	res := validate.New(reg, limitsFrom(cfg), logger).Check(ct)
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !res.OK {
		return fmt.Errorf("contract rejected with %d issue(s)", len(res.Issues))
	}
	return nil
}

func readContract(path string) (*contract.Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contract: %w", err)
	}
	defer f.Close()
	return contract.Decode(f)
}
