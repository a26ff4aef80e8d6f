package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/compile"
	"github.com/ndjc/forge/internal/plan"
	"github.com/ndjc/forge/internal/sanitize"
	"github.com/ndjc/forge/internal/validate"
)

var compileOut string

var compileCmd = &cobra.Command{
	Use:   "compile [contract.json]",
	Short: "Compile a contract into a sanitized plan",
	Long: `Validates the contract, compiles it into a plan and sanitizes block
content. The plan is written as JSON for inspection or a later apply.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "plan.json", "Where to write the compiled plan")
}

func runCompile(cmd *cobra.Command, args []string) error {
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
	if !res.OK {
		return fmt.Errorf("contract rejected with %d issue(s); run validate for details", len(res.Issues))
	}

	p, err := compile.New(reg, compile.Options{AllowCompanionCode: cfg.Gate.AllowCompanionCode}, logger).Compile(ct)
	if err != nil {
		return err
	}
	issues := sanitize.Apply(p, sanitize.Options{EmptiedBlockIsError: cfg.Gate.FailClose}, logger)
	for _, is := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s %s\n", is.Severity, is.Code, is.Reason)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(compileOut, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	fmt.Printf("Plan written to %s\n", compileOut)
	return nil
}

func readPlan(path string) (*plan.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p := plan.New()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return p, nil
}
