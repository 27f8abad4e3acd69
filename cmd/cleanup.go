package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dubflow/dubflow/internal/utils"
	"github.com/spf13/cobra"
)

var (
	cleanupOutputDir string
	cleanupDryRun    bool
	cleanupAll       bool
)

// intermediateArtifacts are the per-run files and directories that are only
// needed while the pipeline is running. The final video, subtitle files and
// segment timelines are kept unless --all is given.
var intermediateArtifacts = []string{
	"audio_segment",
	"htdemucs",
	"gaps-*",
	"*.wav",
	"*.mp3",
}

// keepEvenWithAll are artifacts never removed by cleanup
var keepEvenWithAll = map[string]bool{
	"dubbed_video.mp4": true,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove intermediate artifacts from a workflow output directory",
	Long: `Delete the working files a dubbing run leaves behind (extracted audio,
stems, per-segment clips). The final video, subtitles and segment timelines
are kept unless --all is specified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupOutputDir == "" {
			return fmt.Errorf("output directory is required")
		}
		if _, err := os.Stat(cleanupOutputDir); os.IsNotExist(err) {
			return fmt.Errorf("output directory %s does not exist", cleanupOutputDir)
		}

		patterns := intermediateArtifacts
		if cleanupAll {
			patterns = append([]string{"*.json", "*.srt", "*.state.yaml"}, patterns...)
		}

		var toDelete []string
		seen := map[string]bool{}
		for _, pattern := range patterns {
			matches, err := filepath.Glob(filepath.Join(cleanupOutputDir, pattern))
			if err != nil {
				return fmt.Errorf("bad cleanup pattern %q: %w", pattern, err)
			}
			for _, match := range matches {
				if keepEvenWithAll[filepath.Base(match)] || seen[match] {
					continue
				}
				seen[match] = true
				toDelete = append(toDelete, match)
			}
		}

		if len(toDelete) == 0 {
			fmt.Println("Nothing to clean up.")
			return nil
		}

		fmt.Printf("Found %d artifacts to delete:\n", len(toDelete))
		for _, path := range toDelete {
			fmt.Printf("- %s\n", strings.TrimPrefix(path, cleanupOutputDir+string(os.PathSeparator)))
		}

		if cleanupDryRun {
			fmt.Println("Dry run - nothing was deleted.")
			return nil
		}

		for _, path := range toDelete {
			if err := os.RemoveAll(path); err != nil {
				utils.LogWarning("Failed to delete %s: %v", path, err)
			}
		}

		fmt.Println("Cleanup completed.")
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupOutputDir, "dir", "d", "", "Workflow output directory to clean up (required)")
	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "Show what would be deleted without actually deleting")
	cleanupCmd.Flags().BoolVarP(&cleanupAll, "all", "a", false, "Also remove segment timelines, subtitles and run state")

	_ = cleanupCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(cleanupCmd)
}
