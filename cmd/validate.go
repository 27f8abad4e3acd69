package cmd

import (
	"fmt"

	"github.com/dubflow/dubflow/internal/config"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/validator"
	"github.com/dubflow/dubflow/internal/workflow"

	"github.com/spf13/cobra"
)

var validateWorkflowPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate environment setup",
	Long: `Check that the required external tools are installed and, when a
workflow file is given, dry-check every step's configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.LogInfo("Validating environment...")

		// Validate external tools (ffmpeg, etc.)
		if err := validator.ValidateExternalTools(); err != nil {
			return fmt.Errorf("external tools validation failed: %w", err)
		}
		utils.LogSuccess("External tools: OK")

		if err := validator.ValidateEnvVars(); err != nil {
			return fmt.Errorf("environment variables validation failed: %w", err)
		}
		utils.LogSuccess("Environment variables: OK")

		if validateWorkflowPath != "" {
			inputConfig, err := config.NewInputConfig("", "", validateWorkflowPath)
			if err != nil {
				return err
			}
			wf, err := workflow.LoadFromFile(inputConfig)
			if err != nil {
				return fmt.Errorf("failed to load workflow: %w", err)
			}
			if err := wf.Validate(); err != nil {
				return fmt.Errorf("workflow validation failed: %w", err)
			}
			utils.LogSuccess("Workflow steps: OK")
		}

		utils.LogSuccess("Environment validation completed successfully")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateWorkflowPath, "workflow", "w", "", "Workflow YAML file to dry-check")
	rootCmd.AddCommand(validateCmd)
}
