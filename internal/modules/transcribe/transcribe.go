// Package transcribe runs the diarizing transcriber over the vocal stem and
// produces the segment timeline plus a source-language subtitle file. The
// transcriber emits speech-only spans with per-speaker gender labels, so its
// output maps directly onto timeline segments.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	modules "github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
)

// CommandExecutor interface for executing commands
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, name string, args []string) ([]byte, error)
	LookPath(file string) (string, error)
}

// RealCommandExecutor implements actual command execution
type RealCommandExecutor struct{}

func (e *RealCommandExecutor) ExecuteCommand(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

func (e *RealCommandExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// defaultTranscriber is the diarizing whisper wrapper CLI
const defaultTranscriber = "whisper-diarize"

// Module implements the transcription stage
type Module struct {
	cmdExecutor CommandExecutor
}

// Params contains the parameters for transcription
type Params struct {
	Input        string `json:"input"`        // Path to input audio file (vocal stem)
	Output       string `json:"output"`       // Path to output directory
	Transcriber  string `json:"transcriber"`  // Transcriber CLI (default: whisper-diarize)
	Language     string `json:"language"`     // Source language code (default: auto)
	SegmentsName string `json:"segmentsName"` // Segments file name (default: segments.json)
	SubtitleName string `json:"subtitleName"` // Subtitle file name (default: source.srt)
}

// rawSegment is one span as the transcriber CLI reports it, in seconds
type rawSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Gender  string  `json:"gender"`
	Text    string  `json:"text"`
}

// New creates a new transcribe module
func New() modules.Module {
	return &Module{cmdExecutor: &RealCommandExecutor{}}
}

// NewWithExecutor creates a new transcribe module with a custom command executor
func NewWithExecutor(executor CommandExecutor) modules.Module {
	return &Module{cmdExecutor: executor}
}

// Name returns the module name
func (m *Module) Name() string {
	return "transcribe"
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

	// Inputs under the output directory are produced by earlier steps and do
	// not exist at validation time.
	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	if fileInfo, err := os.Stat(resolvedInput); err == nil && !fileInfo.IsDir() {
		if err := utils.ValidateFileExtension(resolvedInput, utils.AudioExtensions); err != nil {
			return err
		}
	}

	transcriber := p.Transcriber
	if transcriber == "" {
		transcriber = defaultTranscriber
	}
	if _, err := m.cmdExecutor.LookPath(transcriber); err != nil {
		utils.LogWarning("%s not found in PATH; transcription will fail unless an existing segments file is present", transcriber)
	}

	return nil
}

// Execute transcribes the input audio into a segment timeline and source SRT
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.Transcriber == "" {
		p.Transcriber = defaultTranscriber
	}
	if p.Language == "" {
		p.Language = "auto"
	}
	if p.SegmentsName == "" {
		p.SegmentsName = "segments.json"
	}
	if p.SubtitleName == "" {
		p.SubtitleName = "source.srt"
	}
	if p.Output == "" {
		return modules.ModuleResult{}, fmt.Errorf("output directory path is required")
	}

	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	segmentsPath := filepath.Join(p.Output, p.SegmentsName)
	subtitlePath := filepath.Join(p.Output, p.SubtitleName)

	// Transcription is the most expensive stage; never redo it
	if utils.FileExists(segmentsPath) {
		utils.LogInfo("Segments file %s already exists, skipping transcription", segmentsPath)
		return m.result(segmentsPath, subtitlePath), nil
	}

	if _, err := os.Stat(resolvedInput); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to access input: %w", err)
	}
	if err := os.MkdirAll(p.Output, 0755); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	utils.LogInfo("Transcribing %s (this may take a while)", resolvedInput)

	args := []string{
		"--language", p.Language,
		"--output-format", "json",
		resolvedInput,
	}
	out, err := m.cmdExecutor.ExecuteCommand(ctx, p.Transcriber, args)
	if err != nil {
		return modules.ModuleResult{}, fmt.Errorf("%s failed: %w (output: %s)", p.Transcriber, err, string(out))
	}

	segments, err := parseTranscript(out)
	if err != nil {
		return modules.ModuleResult{}, err
	}
	if len(segments) == 0 {
		return modules.ModuleResult{}, fmt.Errorf("transcriber found no speech in %s", resolvedInput)
	}

	if err := timeline.Save(segmentsPath, segments); err != nil {
		return modules.ModuleResult{}, err
	}
	if err := writeSubtitles(subtitlePath, segments); err != nil {
		return modules.ModuleResult{}, err
	}

	utils.LogSuccess("Transcribed %d segments to %s", len(segments), segmentsPath)
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

// parseTranscript converts the transcriber's JSON output into a validated
// segment timeline. Spans are reported in seconds and re-indexed from 1.
func parseTranscript(data []byte) (timeline.List, error) {
	var payload struct {
		Segments []rawSegment `json:"segments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse transcriber output: %w", err)
	}

	list := make(timeline.List, 0, len(payload.Segments))
	for _, raw := range payload.Segments {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}
		list = append(list, timeline.Segment{
			Index:   len(list) + 1,
			Start:   timeline.FromSeconds(raw.Start),
			End:     timeline.FromSeconds(raw.End),
			Speaker: raw.Speaker,
			Gender:  raw.Gender,
			Text:    text,
		})
	}

	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("transcriber produced an invalid timeline: %w", err)
	}
	return list, nil
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

	return timeline.WriteSRT(f, list, false)
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
				Name:        "transcriber",
				Description: "Diarizing transcriber CLI (default: whisper-diarize)",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "language",
				Description: "Source language code (default: auto)",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "segmentsName",
				Description: "Segments file name (default: segments.json)",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "subtitleName",
				Description: "Subtitle file name (default: source.srt)",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "segments",
				Description: "Diarized segment timeline",
				Patterns:    []string{".json"},
				Type:        string(modules.OutputTypeFile),
			},
			{
				Name:        "subtitles",
				Description: "Source-language subtitles",
				Patterns:    []string{".srt"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
