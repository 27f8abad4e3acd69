package cmd

import (
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// verbosityLevel is the command-line flag for setting the log level
	verbosityLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dubflow",
	Short: "An automated video dubbing pipeline",
	Long: `DubFlow translates and re-voices videos end to end: it separates the
audio, transcribes and diarizes the speech, translates it, synthesizes dubbed
speech that fits the original timing, and muxes the result back into the
video with selectable subtitles. Pipelines are configured as YAML workflows.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set the global log level based on the flag
		logLevel := utils.LogLevelFromString(verbosityLevel)
		utils.SetLogLevel(logLevel)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Initialize global flags
	rootCmd.PersistentFlags().StringVarP(&verbosityLevel, "log-level", "l", "normal",
		"Set the logging verbosity level: quiet, normal, verbose, debug")
}
