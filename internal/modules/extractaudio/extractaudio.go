// Package extractaudio pulls the audio track out of the source video as a
// mono 16 kHz WAV, the format the transcriber and separator expect.
package extractaudio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	modules "github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/wavio"
)

// execCommand allows us to mock exec.Command in tests
var execCommand = exec.Command

// Module implements the audio extraction stage
type Module struct{}

// Params contains the parameters for audio extraction
type Params struct {
	Input      string `json:"input"`      // Path to input video file
	Output     string `json:"output"`     // Path to output directory
	OutputName string `json:"outputName"` // Custom output filename (default: <video base>.wav)
	SampleRate int    `json:"sampleRate"` // Sample rate in Hz (default: 16000)
	Channels   int    `json:"channels"`   // Number of audio channels (default: 1)
}

// New creates a new extractaudio module
func New() modules.Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "extractaudio"
}

// Validate checks if the parameters are valid
func (m *Module) Validate(params map[string]interface{}) error {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return err
	}

	if err := utils.ValidateInputPath(p.Input, p.Output, ""); err != nil {
		return err
	}
	if err := utils.ValidateOutputPath(p.Output); err != nil {
		return err
	}

	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	if err := utils.ValidateFileExtension(resolvedInput, utils.VideoExtensions); err != nil {
		return err
	}

	if p.OutputName != "" {
		if err := utils.ValidateFileExtension(p.OutputName, []string{".wav"}); err != nil {
			return err
		}
	}

	return utils.ValidateRequiredDependency("ffmpeg")
}

// Execute extracts the audio track from the input video
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.SampleRate == 0 {
		p.SampleRate = 16000
	}
	if p.Channels == 0 {
		p.Channels = 1
	}
	if p.Output == "" {
		return modules.ModuleResult{}, fmt.Errorf("output directory path is required")
	}

	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	if _, err := os.Stat(resolvedInput); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to access input: %w", err)
	}
	if err := os.MkdirAll(p.Output, 0755); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputName := p.OutputName
	if outputName == "" {
		outputName = utils.BaseNameWithoutExt(resolvedInput) + ".wav"
	}
	audioPath := filepath.Join(p.Output, outputName)

	// Idempotent re-entry: a previous run already produced the track
	if utils.FileExists(audioPath) {
		utils.LogInfo("Audio track already extracted at %s, skipping", audioPath)
		return modules.ModuleResult{Outputs: map[string]string{"audio": audioPath}}, nil
	}

	utils.LogVerbose("Extracting audio from %s to %s", resolvedInput, audioPath)

	cmd := execCommand(
		"ffmpeg",
		"-i", resolvedInput,
		"-vn",
		"-ar", fmt.Sprintf("%d", p.SampleRate),
		"-ac", fmt.Sprintf("%d", p.Channels),
		"-c:a", "pcm_s16le",
		audioPath,
		"-y",
		"-loglevel", "error",
	)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("ffmpeg command failed: %w", err)
	}

	m.verifyFormat(audioPath, p)

	utils.LogSuccess("Successfully extracted audio to %s", audioPath)
	return modules.ModuleResult{
		Outputs: map[string]string{
			"audio": audioPath,
		},
	}, nil
}

// verifyFormat checks the produced WAV against the requested format. A
// mismatch downstream only degrades quality, so it warns instead of failing.
func (m *Module) verifyFormat(audioPath string, p Params) {
	clip, err := wavio.ReadFile(audioPath)
	if err != nil {
		utils.LogWarning("Could not verify extracted audio format: %v", err)
		return
	}
	if clip.Channels() != p.Channels {
		utils.LogWarning("Extracted audio has %d channels, expected %d", clip.Channels(), p.Channels)
	}
	if clip.SampleRate() != p.SampleRate {
		utils.LogWarning("Extracted audio has sample rate %d, expected %d", clip.SampleRate(), p.SampleRate)
	}
}

// GetIO returns the module's input/output specification
func (m *Module) GetIO() modules.ModuleIO {
	return modules.ModuleIO{
		RequiredInputs: []modules.ModuleInput{
			{
				Name:        "input",
				Description: "Path to input video file",
				Patterns:    utils.VideoExtensions,
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "output",
				Description: "Path to output directory",
				Type:        string(modules.InputTypeDirectory),
			},
		},
		OptionalInputs: []modules.ModuleInput{
			{
				Name:        "outputName",
				Description: "Custom output filename",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "sampleRate",
				Description: "Sample rate in Hz (default: 16000)",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "channels",
				Description: "Number of audio channels (default: 1)",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "audio",
				Description: "Extracted audio track",
				Patterns:    []string{".wav"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
