// Package config holds the command-line input configuration for a dubbing
// run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dubflow/dubflow/internal/utils"
)

// InputConfig holds the configuration for input files and directories
type InputConfig struct {
	InputPath     string
	OutputPath    string
	WorkflowPath  string
	InputFileName string
	InputFileExt  string
}

// NewInputConfig creates a new input configuration
func NewInputConfig(inputPath, outputPath, workflowPath string) (*InputConfig, error) {
	config := &InputConfig{
		InputPath:    inputPath,
		OutputPath:   outputPath,
		WorkflowPath: workflowPath,
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate performs comprehensive validation of the input configuration
func (c *InputConfig) validate() error {
	if c.WorkflowPath == "" {
		return fmt.Errorf("workflow path is required")
	}
	if _, err := os.Stat(c.WorkflowPath); os.IsNotExist(err) {
		return fmt.Errorf("workflow file does not exist: %s", c.WorkflowPath)
	}

	if c.InputPath != "" {
		fileInfo, err := os.Stat(c.InputPath)
		if err != nil {
			return fmt.Errorf("input path does not exist: %w", err)
		}
		if fileInfo.IsDir() {
			return fmt.Errorf("input must be a file, not a directory: %s", c.InputPath)
		}
		c.InputFileName = filepath.Base(c.InputPath)
		c.InputFileExt = strings.ToLower(filepath.Ext(c.InputPath))
	}

	if c.OutputPath != "" {
		fileInfo, err := os.Stat(c.OutputPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to access output path: %w", err)
			}
			if err := os.MkdirAll(c.OutputPath, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		} else if !fileInfo.IsDir() {
			return fmt.Errorf("output must be a directory, not a file: %s", c.OutputPath)
		}
	}

	return nil
}

// IsValidVideoFile checks if the input file is a supported video container
func (c *InputConfig) IsValidVideoFile() bool {
	return utils.IsVideoFile(c.InputPath)
}

// IsValidAudioFile checks if the input file is a supported audio format
func (c *InputConfig) IsValidAudioFile() bool {
	for _, ext := range utils.AudioExtensions {
		if c.InputFileExt == ext {
			return true
		}
	}
	return false
}

// GetInputType returns the type of input file
func (c *InputConfig) GetInputType() string {
	if c.IsValidVideoFile() {
		return "video"
	}
	if c.IsValidAudioFile() {
		return "audio"
	}
	return "unknown"
}
