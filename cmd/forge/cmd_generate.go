package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ndjc/forge/internal/generate"
)

var (
	genTemplate  string
	genAppName   string
	genPackageID string
	genLocales   []string
	genOut       string
	genRun       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [description...]",
	Short: "Generate a contract from a natural-language description",
	Long: `Asks the model for a contract matching the description. The reply is
decoded and written as JSON; with --run it is fed straight into the
pipeline, where it faces the same validation as any hand-written contract.

Requires GEMINI_API_KEY (or generate.apiKey in the config file).

Example:
  forge generate "a dark-mode note taking app" \
    --app-name "Night Notes" --package-id app.ndjc.notes.nightly`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genTemplate, "template", "circle-basic", "Template to target")
	generateCmd.Flags().StringVar(&genAppName, "app-name", "", "Display name for the app")
	generateCmd.Flags().StringVar(&genPackageID, "package-id", "", "Application id (must stay inside the app.ndjc. namespace)")
	generateCmd.Flags().StringSliceVar(&genLocales, "locales", []string{"en"}, "Locales the app should carry")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "contract.json", "Where to write the generated contract")
	generateCmd.Flags().BoolVar(&genRun, "run", false, "Run the generated contract immediately")
	generateCmd.MarkFlagRequired("app-name")
	generateCmd.MarkFlagRequired("package-id")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Generate.APIKey == "" {
		return fmt.Errorf("no API key: set GEMINI_API_KEY or generate.apiKey")
	}

	gen, err := generate.NewGemini(cmd.Context(), cfg.Generate.APIKey, logger)
	if err != nil {
		return err
	}
	ct, err := gen.Generate(cmd.Context(), generate.Request{
		RunID:       uuid.NewString(),
		Template:    genTemplate,
		AppName:     genAppName,
		PackageID:   genPackageID,
		Description: strings.Join(args, " "),
		Locales:     genLocales,
		Model:       cfg.Generate.Model,
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ct, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(genOut, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write contract: %w", err)
	}
	fmt.Printf("Contract written to %s\n", genOut)

	if !genRun {
		return nil
	}
	pl, led, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer led.Close()
	outcome, err := pl.Run(cmd.Context(), ct)
	if outcome != nil {
		printOutcome(genOut, outcome)
	}
	return err
}
