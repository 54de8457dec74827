package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/internal/application/orchestrator"
	"github.com/aescanero/assetforge/internal/assets"
	"github.com/aescanero/assetforge/pkg/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the step graph and print the execution order",
	Long: `Register every asset step, apply the policy file and validate the
dependency graph without running anything.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&runPolicy, "policy", "", "step policy file (overrides PIPELINE_POLICY_FILE)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	defs, err := stepDefinitions(cfg, logger)
	if err != nil {
		return err
	}

	pipeline := orchestrator.NewPipeline(nil, nil, nil, logger, orchestrator.Settings{})
	if err := assets.Register(pipeline, defs); err != nil {
		return err
	}

	order, err := pipeline.Plan()
	if err != nil {
		return err
	}

	byName := make(map[domain.StepName]domain.StepDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d steps, execution order:\n", len(order))
	for i, name := range order {
		def := byName[name]
		deps := "-"
		if len(def.Dependencies) > 0 {
			parts := make([]string, len(def.Dependencies))
			for j, d := range def.Dependencies {
				parts[j] = d.String()
			}
			deps = strings.Join(parts, ", ")
		}
		fmt.Fprintf(out, "%2d. %-10s after: %s\n", i+1, name, deps)
	}
	return nil
}
