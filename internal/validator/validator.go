// Package validator checks the external collaborators the pipeline shells
// out to before a run starts.
package validator

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dubflow/dubflow/internal/utils"
)

// ExternalTool represents an external command-line tool requirement
type ExternalTool struct {
	Name        string
	VersionArgs []string
	Validate    func(output string) bool
}

// requiredTools must be installed for any workflow to run
var requiredTools = []ExternalTool{
	{
		Name:        "ffmpeg",
		VersionArgs: []string{"-version"},
		Validate: func(output string) bool {
			return strings.Contains(output, "ffmpeg version")
		},
	},
	{
		Name:        "ffprobe",
		VersionArgs: []string{"-version"},
		Validate: func(output string) bool {
			return strings.Contains(output, "ffprobe version")
		},
	},
}

// optionalTools back individual stages; a missing one only disables its stage
var optionalTools = []ExternalTool{
	{
		Name:        "demucs",
		VersionArgs: []string{"--help"},
		Validate: func(output string) bool {
			return strings.Contains(strings.ToLower(output), "usage")
		},
	},
	{
		Name:        "edge-tts",
		VersionArgs: []string{"--help"},
		Validate: func(output string) bool {
			return strings.Contains(strings.ToLower(output), "usage")
		},
	},
	{
		Name:        "whisper-diarize",
		VersionArgs: []string{"--help"},
		Validate: func(output string) bool {
			return strings.Contains(strings.ToLower(output), "usage")
		},
	},
	{
		Name:        "nllb-translate",
		VersionArgs: []string{"--help"},
		Validate: func(output string) bool {
			return strings.Contains(strings.ToLower(output), "usage")
		},
	},
}

// optionalEnvVars enable optional stages when set
var optionalEnvVars = []string{
	"OPENAI_API_KEY",
}

// ValidateExternalTools checks if all required external tools are installed
func ValidateExternalTools() error {
	for _, tool := range requiredTools {
		path, err := exec.LookPath(tool.Name)
		if err != nil {
			return fmt.Errorf("tool %s not found in PATH: %w", tool.Name, err)
		}

		cmd := exec.Command(path, tool.VersionArgs...)
		output, err := cmd.Output()
		if err != nil {
			return fmt.Errorf("failed to run %s: %w", tool.Name, err)
		}

		if !tool.Validate(string(output)) {
			return fmt.Errorf("invalid version of %s detected", tool.Name)
		}

		utils.LogVerbose("✓ %s found at %s", tool.Name, path)
	}

	for _, tool := range optionalTools {
		path, err := exec.LookPath(tool.Name)
		if err != nil {
			utils.LogVerbose("ℹ️ Optional tool %s not found: %v", tool.Name, err)
			continue
		}

		cmd := exec.Command(path, tool.VersionArgs...)
		output, err := cmd.CombinedOutput()
		if err != nil {
			utils.LogVerbose("ℹ️ Optional tool %s found but couldn't verify version: %v", tool.Name, err)
			continue
		}

		if !tool.Validate(string(output)) {
			utils.LogVerbose("ℹ️ Optional tool %s found but may not be the correct version", tool.Name)
			continue
		}

		utils.LogVerbose("✓ Optional tool %s found at %s", tool.Name, path)
	}

	return nil
}

// ValidateEnvVars reports on optional environment variables. None are hard
// requirements; the review stage degrades gracefully without its key.
func ValidateEnvVars() error {
	for _, envVar := range optionalEnvVars {
		if os.Getenv(envVar) == "" {
			utils.LogWarning("%s is not set; dependent stages will be skipped", envVar)
			continue
		}
		utils.LogVerbose("✓ %s is set", envVar)
	}

	return nil
}
