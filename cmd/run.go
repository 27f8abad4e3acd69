package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dubflow/dubflow/internal/config"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/validator"
	"github.com/dubflow/dubflow/internal/workflow"

	"github.com/spf13/cobra"
)

var (
	workflowFilePath  string
	inputFileOverride string
	outputFolderPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a dubbing workflow",
	Long: `Execute a dubbing workflow defined in a YAML file. Completed stages
whose outputs already exist are skipped, so re-running after a failure
resumes from where the previous run stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate that external dependencies are installed
		if err := validator.ValidateExternalTools(); err != nil {
			return fmt.Errorf("dependency validation failed: %w", err)
		}

		inputConfig, err := config.NewInputConfig(inputFileOverride, outputFolderPath, workflowFilePath)
		if err != nil {
			return err
		}

		wf, err := workflow.LoadFromFile(inputConfig)
		if err != nil {
			return fmt.Errorf("failed to load workflow: %w", err)
		}

		if inputFileOverride != "" {
			utils.LogInfo("Using input file from CLI: %s", inputFileOverride)
		}

		// Ctrl-C stops the pipeline at the next stage boundary
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := wf.Execute(ctx); err != nil {
			return fmt.Errorf("workflow execution failed: %w", err)
		}

		utils.LogInfo("Workflow completed successfully")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&workflowFilePath, "workflow", "w", "", "Path to workflow YAML file (required)")
	runCmd.Flags().StringVarP(&inputFileOverride, "input", "i", "", "Input video path (overrides the one in workflow file)")
	runCmd.Flags().StringVarP(&outputFolderPath, "output-folder", "o", "", "Output folder path (overrides the one in workflow file)")
	_ = runCmd.MarkFlagRequired("workflow")
	rootCmd.AddCommand(runCmd)
}
