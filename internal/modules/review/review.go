// Package review runs the optional LLM fluency pass over the translated
// segments. The stage is best-effort: a missing API key or a failed request
// leaves the machine translations untouched.
package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	modules "github.com/dubflow/dubflow/internal/mod"
	reviewsvc "github.com/dubflow/dubflow/internal/services/review"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
)

// newReviewer allows tests to substitute the review backend
var newReviewer = func(opts reviewsvc.Options) (*reviewsvc.Reviewer, error) {
	return reviewsvc.New(opts)
}

// Module implements the translation review stage
type Module struct{}

// Params contains the parameters for translation review
type Params struct {
	Input        string `json:"input"`        // Path to translated segments JSON file
	Output       string `json:"output"`       // Path to output directory
	SourceLang   string `json:"sourceLang"`   // Source language name for the prompt (e.g. English)
	TargetLang   string `json:"targetLang"`   // Target language name for the prompt (e.g. Bengali)
	Model        string `json:"model"`        // Chat model (optional)
	SegmentsName string `json:"segmentsName"` // Output segments file name (default: segments_reviewed.json)
	SubtitleName string `json:"subtitleName"` // Regenerated subtitle file name (default: target.srt)
}

// New creates a new review module
func New() modules.Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "review"
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

	if os.Getenv("OPENAI_API_KEY") == "" {
		utils.LogWarning("OPENAI_API_KEY is not set; the review stage will pass translations through unchanged")
	}

	return nil
}

// Execute reviews the translated texts and persists the polished timeline.
// Review failures degrade to a pass-through with a warning.
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.SegmentsName == "" {
		p.SegmentsName = "segments_reviewed.json"
	}
	if p.SubtitleName == "" {
		p.SubtitleName = "target.srt"
	}
	if p.Output == "" {
		return modules.ModuleResult{}, fmt.Errorf("output directory path is required")
	}

	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	segmentsPath := filepath.Join(p.Output, p.SegmentsName)
	subtitlePath := filepath.Join(p.Output, p.SubtitleName)

	if utils.FileExists(segmentsPath) {
		utils.LogInfo("Reviewed segments %s already exist, skipping", segmentsPath)
		return m.result(segmentsPath, subtitlePath), nil
	}

	segments, err := timeline.Load(resolvedInput)
	if err != nil {
		return modules.ModuleResult{}, err
	}
	if err := os.MkdirAll(p.Output, 0755); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	reviewed := segments.Clone()
	if polished, ok := m.review(ctx, p, segments); ok {
		for i := range reviewed {
			reviewed[i].TranslatedText = polished[i]
		}
	}

	if err := timeline.Save(segmentsPath, reviewed); err != nil {
		return modules.ModuleResult{}, err
	}
	if err := writeSubtitles(subtitlePath, reviewed); err != nil {
		return modules.ModuleResult{}, err
	}

	return m.result(segmentsPath, subtitlePath), nil
}

// review returns the polished texts, or ok=false when the pass is skipped or
// fails and the originals should be kept.
func (m *Module) review(ctx context.Context, p Params, segments timeline.List) ([]string, bool) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		utils.LogWarning("OPENAI_API_KEY not set, skipping translation review")
		return nil, false
	}

	reviewer, err := newReviewer(reviewsvc.Options{
		Model:      p.Model,
		SourceLang: p.SourceLang,
		TargetLang: p.TargetLang,
	})
	if err != nil {
		utils.LogWarning("Could not create reviewer, keeping machine translations: %v", err)
		return nil, false
	}

	sources := make([]string, len(segments))
	translations := make([]string, len(segments))
	for i, seg := range segments {
		sources[i] = seg.Text
		translations[i] = seg.TranslatedText
	}

	utils.LogInfo("Reviewing %d translations", len(translations))
	polished, err := reviewer.Review(ctx, sources, translations)
	if err != nil {
		utils.LogWarning("Translation review failed, keeping machine translations: %v", err)
		return nil, false
	}

	utils.LogSuccess("Translation review complete")
	return polished, true
}

func (m *Module) result(segmentsPath, subtitlePath string) modules.ModuleResult {
	return modules.ModuleResult{
		Outputs: map[string]string{
			"segments":  segmentsPath,
			"subtitles": subtitlePath,
		},
	}
}

func writeSubtitles(path string, list timeline.List) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subtitle file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			utils.LogWarning("Failed to close subtitle file: %v", err)
		}
	}()

	return timeline.WriteSRT(f, list, true)
}

// GetIO returns the module's input/output specification
func (m *Module) GetIO() modules.ModuleIO {
	return modules.ModuleIO{
		RequiredInputs: []modules.ModuleInput{
			{
				Name:        "input",
				Description: "Path to translated segments JSON file",
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
				Name:        "sourceLang",
				Description: "Source language name for the review prompt",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "targetLang",
				Description: "Target language name for the review prompt",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "model",
				Description: "Chat model for the review pass",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "segmentsName",
				Description: "Output segments file name",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "subtitleName",
				Description: "Regenerated subtitle file name",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "segments",
				Description: "Segment timeline with reviewed translations",
				Patterns:    []string{".json"},
				Type:        string(modules.OutputTypeFile),
			},
			{
				Name:        "subtitles",
				Description: "Regenerated target-language subtitles",
				Patterns:    []string{".srt"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
