// Package translate fills in the translated text for every segment and
// writes the target-language subtitle file.
package translate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	modules "github.com/dubflow/dubflow/internal/mod"
	transvc "github.com/dubflow/dubflow/internal/services/translate"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
)

// newTranslator allows tests to substitute the translation backend
var newTranslator = func(cfg transvc.Config) (*transvc.Translator, error) {
	return transvc.New(cfg)
}

// Module implements the translation stage
type Module struct{}

// Params contains the parameters for translation
type Params struct {
	Input        string `json:"input"`        // Path to segments JSON file
	Output       string `json:"output"`       // Path to output directory
	SourceLang   string `json:"sourceLang"`   // Source language code (e.g. eng_Latn)
	TargetLang   string `json:"targetLang"`   // Target language code (e.g. ben_Beng)
	Model        string `json:"model"`        // Translation model checkpoint (optional)
	SegmentsName string `json:"segmentsName"` // Output segments file name (default: segments_translated.json)
	SubtitleName string `json:"subtitleName"` // Subtitle file name (default: target.srt)
}

// New creates a new translate module
func New() modules.Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "translate"
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

	if p.SourceLang == "" || p.TargetLang == "" {
		return &utils.ValidationError{
			Field:   "sourceLang/targetLang",
			Message: "source and target language codes are required",
		}
	}

	return nil
}

// Execute translates every segment's text and persists the updated timeline
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.SegmentsName == "" {
		p.SegmentsName = "segments_translated.json"
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
		utils.LogInfo("Translated segments %s already exist, skipping", segmentsPath)
		return m.result(segmentsPath, subtitlePath), nil
	}

	segments, err := timeline.Load(resolvedInput)
	if err != nil {
		return modules.ModuleResult{}, err
	}
	if err := os.MkdirAll(p.Output, 0755); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	translator, err := newTranslator(transvc.Config{
		Model:      p.Model,
		SourceLang: p.SourceLang,
		TargetLang: p.TargetLang,
		WorkDir:    p.Output,
	})
	if err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to acquire translator: %w", err)
	}
	defer func() {
		if err := translator.Close(); err != nil {
			utils.LogWarning("Failed to release translator: %v", err)
		}
	}()

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	utils.LogInfo("Translating %d segments from %s to %s", len(texts), p.SourceLang, p.TargetLang)
	translations, err := translator.Translate(ctx, texts)
	if err != nil {
		return modules.ModuleResult{}, err
	}

	translated := segments.Clone()
	for i := range translated {
		translated[i].TranslatedText = translations[i]
	}

	if err := timeline.Save(segmentsPath, translated); err != nil {
		return modules.ModuleResult{}, err
	}
	if err := writeSubtitles(subtitlePath, translated); err != nil {
		return modules.ModuleResult{}, err
	}

	utils.LogSuccess("Translated segments written to %s", segmentsPath)
	return m.result(segmentsPath, subtitlePath), nil
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
				Description: "Path to segments JSON file",
				Patterns:    []string{".json"},
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "output",
				Description: "Path to output directory",
				Type:        string(modules.InputTypeDirectory),
			},
			{
				Name:        "sourceLang",
				Description: "Source language code",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "targetLang",
				Description: "Target language code",
				Type:        string(modules.InputTypeData),
			},
		},
		OptionalInputs: []modules.ModuleInput{
			{
				Name:        "model",
				Description: "Translation model checkpoint",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "segmentsName",
				Description: "Output segments file name",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "subtitleName",
				Description: "Subtitle file name",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "segments",
				Description: "Segment timeline with translations",
				Patterns:    []string{".json"},
				Type:        string(modules.OutputTypeFile),
			},
			{
				Name:        "subtitles",
				Description: "Target-language subtitles",
				Patterns:    []string{".srt"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
