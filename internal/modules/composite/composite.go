// Package composite assembles the dubbed clips into the final dubbed audio
// track, either overlaid on the separated background stem or concatenated
// with source ambience filling the gaps.
package composite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dubflow/dubflow/internal/compose"
	modules "github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/wavio"
)

// Composition modes
const (
	ModeOverlay = "overlay"
	ModeConcat  = "concat"
)

// Module implements the track composition stage
type Module struct{}

// Params contains the parameters for track composition
type Params struct {
	Input      string `json:"input"`      // Path to dubbed segments JSON file
	Output     string `json:"output"`     // Path to output directory
	Background string `json:"background"` // Path to background stem WAV (overlay mode)
	Source     string `json:"source"`     // Path to source audio WAV (concat mode)
	Mode       string `json:"mode"`       // Composition mode: overlay (default) or concat
	OutputName string `json:"outputName"` // Output track filename (default: dubbed_track.wav)
}

// New creates a new composite module
func New() modules.Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "composite"
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

	switch p.Mode {
	case "", ModeOverlay:
		if p.Background == "" {
			return &utils.ValidationError{
				Field:   "background",
				Message: "background stem path is required in overlay mode",
			}
		}
	case ModeConcat:
		if p.Source == "" {
			return &utils.ValidationError{
				Field:   "source",
				Message: "source audio path is required in concat mode",
			}
		}
		if err := utils.ValidateRequiredDependency("ffmpeg"); err != nil {
			return err
		}
	default:
		return &utils.ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("unknown composition mode %q", p.Mode),
		}
	}

	return nil
}

// Execute builds the dubbed track and writes it to the output directory
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.Mode == "" {
		p.Mode = ModeOverlay
	}
	if p.OutputName == "" {
		p.OutputName = "dubbed_track.wav"
	}
	if p.Output == "" {
		return modules.ModuleResult{}, fmt.Errorf("output directory path is required")
	}

	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	trackPath := filepath.Join(p.Output, p.OutputName)

	if utils.FileExists(trackPath) {
		utils.LogInfo("Dubbed track %s already exists, skipping composition", trackPath)
		return m.result(trackPath), nil
	}

	segments, err := timeline.Load(resolvedInput)
	if err != nil {
		return modules.ModuleResult{}, err
	}
	if err := os.MkdirAll(p.Output, 0755); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	var track *wavio.Clip
	switch p.Mode {
	case ModeOverlay:
		track, err = m.composeOverlay(p, segments)
	case ModeConcat:
		track, err = m.composeConcat(ctx, p, segments)
	default:
		err = fmt.Errorf("unknown composition mode %q", p.Mode)
	}
	if err != nil {
		return modules.ModuleResult{}, err
	}

	if err := track.WriteFile(trackPath); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to write dubbed track: %w", err)
	}

	utils.LogSuccess("Composed dubbed track %s (%dms)", trackPath, track.DurationMS())
	return m.result(trackPath), nil
}

func (m *Module) composeOverlay(p Params, segments timeline.List) (*wavio.Clip, error) {
	background, err := wavio.ReadFile(utils.ResolveOutputPath(p.Background, p.Output))
	if err != nil {
		return nil, fmt.Errorf("failed to load background stem: %w", err)
	}

	track, placements, err := compose.NewCompositor().Compose(segments, background)
	if err != nil {
		return nil, err
	}

	var maxDrift int64
	for _, placement := range placements {
		if placement.DriftMS() > maxDrift {
			maxDrift = placement.DriftMS()
		}
	}
	if maxDrift > 0 {
		utils.LogWarning("Maximum placement drift was %dms", maxDrift)
	}
	return track, nil
}

func (m *Module) composeConcat(ctx context.Context, p Params, segments timeline.List) (*wavio.Clip, error) {
	source := utils.ResolveOutputPath(p.Source, p.Output)
	sourceClip, err := wavio.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to load source audio: %w", err)
	}

	scratch, err := os.MkdirTemp(p.Output, "gaps-")
	if err != nil {
		return nil, fmt.Errorf("failed to create gap scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			utils.LogWarning("Failed to remove gap scratch directory: %v", err)
		}
	}()

	gaps := compose.NewGapExtractor(ctx, scratch)
	return compose.NewCompositor().ComposeConcat(segments, gaps, source, sourceClip.DurationMS())
}

func (m *Module) result(trackPath string) modules.ModuleResult {
	return modules.ModuleResult{
		Outputs: map[string]string{
			"track": trackPath,
		},
	}
}

// GetIO returns the module's input/output specification
func (m *Module) GetIO() modules.ModuleIO {
	return modules.ModuleIO{
		RequiredInputs: []modules.ModuleInput{
			{
				Name:        "input",
				Description: "Path to dubbed segments JSON file",
				Patterns:    []string{".json"},
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
				Name:        "background",
				Description: "Background stem WAV for overlay mode",
				Patterns:    []string{".wav"},
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "source",
				Description: "Source audio WAV for concat mode",
				Patterns:    []string{".wav"},
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "mode",
				Description: "Composition mode: overlay (default) or concat",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "outputName",
				Description: "Output track filename",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "track",
				Description: "Composed dubbed audio track",
				Patterns:    []string{".wav"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
