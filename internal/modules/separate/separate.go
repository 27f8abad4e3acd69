// Package separate splits the extracted audio into vocal and accompaniment
// stems with demucs. The no_vocals stem becomes the background bed that the
// dubbed speech is mixed onto.
package separate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	modules "github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/utils"
)

// execCommand allows us to mock exec.Command in tests
var execCommand = exec.Command

// defaultModel is the demucs checkpoint that determines the stem directory name
const defaultModel = "htdemucs"

// Module implements the source separation stage
type Module struct{}

// Params contains the parameters for stem separation
type Params struct {
	Input  string `json:"input"`  // Path to input audio file
	Output string `json:"output"` // Path to output directory
	Model  string `json:"model"`  // Demucs model name (default: htdemucs)
}

// New creates a new separate module
func New() modules.Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "separate"
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
	if err := utils.ValidateFileExtension(resolvedInput, utils.AudioExtensions); err != nil {
		return err
	}

	return utils.ValidateRequiredDependency("demucs")
}

// Execute runs demucs in two-stem mode and returns the stem paths
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.Model == "" {
		p.Model = defaultModel
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

	// Demucs writes stems to <output>/<model>/<input base>/
	stemDir := filepath.Join(p.Output, p.Model, utils.BaseNameWithoutExt(resolvedInput))
	vocalsPath := filepath.Join(stemDir, "vocals.wav")
	backgroundPath := filepath.Join(stemDir, "no_vocals.wav")

	if utils.FileExists(vocalsPath) && utils.FileExists(backgroundPath) {
		utils.LogInfo("Stems already separated in %s, skipping", stemDir)
		return stemResult(vocalsPath, backgroundPath), nil
	}

	utils.LogInfo("Separating vocals from %s (this may take a while)", resolvedInput)

	cmd := execCommand(
		"demucs",
		"--two-stems=vocals",
		"-n", p.Model,
		"-o", p.Output,
		resolvedInput,
	)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("demucs command failed: %w", err)
	}

	for _, stem := range []string{vocalsPath, backgroundPath} {
		if !utils.FileExists(stem) {
			return modules.ModuleResult{}, fmt.Errorf("demucs did not produce expected stem %s", stem)
		}
	}

	utils.LogSuccess("Separated stems into %s", stemDir)
	return stemResult(vocalsPath, backgroundPath), nil
}

func stemResult(vocalsPath, backgroundPath string) modules.ModuleResult {
	return modules.ModuleResult{
		Outputs: map[string]string{
			"vocals":     vocalsPath,
			"background": backgroundPath,
		},
	}
}

// GetIO returns the module's input/output specification
func (m *Module) GetIO() modules.ModuleIO {
	return modules.ModuleIO{
		RequiredInputs: []modules.ModuleInput{
			{
				Name:        "input",
				Description: "Path to input audio file",
				Patterns:    utils.AudioExtensions,
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
				Name:        "model",
				Description: "Demucs model name (default: htdemucs)",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "vocals",
				Description: "Isolated vocal stem",
				Patterns:    []string{".wav"},
				Type:        string(modules.OutputTypeFile),
			},
			{
				Name:        "background",
				Description: "Accompaniment stem without vocals",
				Patterns:    []string{".wav"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
