// Package synthesize renders each translated segment as a speech clip and
// plans its playback speed so the dub fits the slot the speaker left. A clip
// that cannot fit at a natural rate is re-synthesized at the clamped speed
// rather than stretched beyond what a listener would accept.
package synthesize

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dubflow/dubflow/internal/dubsync"
	modules "github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/services/tts"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/wavio"
)

// execCommand allows us to mock exec.Command in tests
var execCommand = exec.Command

// newSynthesizer allows tests to substitute the TTS backend per voice
var newSynthesizer = func(voice string) tts.Synthesizer {
	return tts.NewEdgeSynthesizer(voice)
}

// defaultVoices maps voice profile tags to edge-tts neural voices
var defaultVoices = map[string]string{
	"male":   "bn-BD-PradeepNeural",
	"female": "bn-BD-NabanitaNeural",
}

// Module implements the speech synthesis stage
type Module struct{}

// Params contains the parameters for speech synthesis
type Params struct {
	Input          string            `json:"input"`          // Path to translated segments JSON file
	Output         string            `json:"output"`         // Path to output directory
	Voices         map[string]string `json:"voices"`         // Voice profile tag to TTS voice name
	DefaultProfile string            `json:"defaultProfile"` // Fallback profile tag (default: female)
	SegmentsName   string            `json:"segmentsName"`   // Output segments file name (default: segments_dubbed.json)
	ClipDirName    string            `json:"clipDirName"`    // Directory for per-segment clips (default: audio_segment)
}

// New creates a new synthesize module
func New() modules.Module {
	return &Module{}
}

// Name returns the module name
func (m *Module) Name() string {
	return "synthesize"
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

	if err := utils.ValidateRequiredDependency("edge-tts"); err != nil {
		return err
	}
	return utils.ValidateRequiredDependency("ffmpeg")
}

// Execute synthesizes every segment and records clip path and planned speed
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.DefaultProfile == "" {
		p.DefaultProfile = "female"
	}
	if p.SegmentsName == "" {
		p.SegmentsName = "segments_dubbed.json"
	}
	if p.ClipDirName == "" {
		p.ClipDirName = "audio_segment"
	}
	if p.Output == "" {
		return modules.ModuleResult{}, fmt.Errorf("output directory path is required")
	}

	resolvedInput := utils.ResolveOutputPath(p.Input, p.Output)
	segmentsPath := filepath.Join(p.Output, p.SegmentsName)
	clipDir := filepath.Join(p.Output, p.ClipDirName)

	if utils.FileExists(segmentsPath) {
		utils.LogInfo("Dubbed segments %s already exist, skipping synthesis", segmentsPath)
		return m.result(segmentsPath, clipDir), nil
	}

	segments, err := timeline.Load(resolvedInput)
	if err != nil {
		return modules.ModuleResult{}, err
	}
	// Stale clips from an interrupted run would shadow fresh renders
	if err := utils.RecreateDir(clipDir); err != nil {
		return modules.ModuleResult{}, err
	}

	registry, err := buildRegistry(p)
	if err != nil {
		return modules.ModuleResult{}, err
	}

	resynthesized := 0
	dubbed := segments.Clone()
	for i := range dubbed {
		select {
		case <-ctx.Done():
			return modules.ModuleResult{}, ctx.Err()
		default:
		}

		plan, err := m.renderSegment(ctx, registry, clipDir, dubbed, i)
		if err != nil {
			return modules.ModuleResult{}, fmt.Errorf("segment %d: %w", dubbed[i].Index, err)
		}
		if plan.Resynthesize {
			resynthesized++
		}
	}

	if err := timeline.Save(segmentsPath, dubbed); err != nil {
		return modules.ModuleResult{}, err
	}

	utils.LogSuccess("Synthesized %d segments (%d at adjusted speed)", len(dubbed), resynthesized)
	return modules.ModuleResult{
		Outputs: map[string]string{
			"segments": segmentsPath,
			"clips":    clipDir,
		},
		Statistics: map[string]interface{}{
			"segments":      len(dubbed),
			"resynthesized": resynthesized,
		},
	}, nil
}

// renderSegment synthesizes one segment, plans its speed against the room
// before the next segment starts, and re-renders at the clamped speed when
// the natural-rate clip would not fit.
func (m *Module) renderSegment(ctx context.Context, registry *tts.Registry, clipDir string, segments timeline.List, i int) (dubsync.Plan, error) {
	seg := &segments[i]
	text := seg.TranslatedText
	if text == "" {
		return dubsync.Plan{}, fmt.Errorf("segment has no translated text")
	}

	synth, err := registry.Lookup(seg.Gender)
	if err != nil {
		return dubsync.Plan{}, err
	}

	clipPath := filepath.Join(clipDir, fmt.Sprintf("tts_%d.wav", seg.Index))
	if err := m.render(ctx, synth, text, clipPath, timeline.DefaultSpeed); err != nil {
		return dubsync.Plan{}, err
	}

	clip, err := wavio.ReadFile(clipPath)
	if err != nil {
		return dubsync.Plan{}, err
	}

	plan := dubsync.PlanSpeed(seg.Start, segments, clip.DurationMS())
	if plan.Resynthesize {
		utils.LogVerbose("Segment %d: re-synthesizing at %.1fx (natural render is %dms)",
			seg.Index, plan.Applied, clip.DurationMS())
		if err := m.render(ctx, synth, text, clipPath, plan.Applied); err != nil {
			return dubsync.Plan{}, err
		}
	}

	seg.DubbedAudioPath = clipPath
	seg.Speed = plan.Applied
	return plan, nil
}

// render synthesizes text into outPath and strips leading/trailing silence
// in place. TTS engines pad their renders, and the padding would otherwise
// count against the segment's time budget.
func (m *Module) render(ctx context.Context, synth tts.Synthesizer, text, outPath string, speed float64) error {
	if err := synth.Synthesize(ctx, text, outPath, speed); err != nil {
		return err
	}
	return stripSilence(outPath)
}

func stripSilence(clipPath string) error {
	trimmedPath := clipPath + ".trimmed.wav"
	cmd := execCommand(
		"ffmpeg",
		"-y",
		"-i", clipPath,
		"-af", "silenceremove=start_periods=1:start_threshold=-50dB:stop_periods=1:stop_threshold=-50dB",
		trimmedPath,
		"-loglevel", "error",
	)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("silence removal failed: %w", err)
	}

	// A render that is all silence produces no output; keep the original
	if !utils.FileExists(trimmedPath) {
		utils.LogWarning("Silence removal produced no output for %s, keeping original render", clipPath)
		return nil
	}
	return os.Rename(trimmedPath, clipPath)
}

func buildRegistry(p Params) (*tts.Registry, error) {
	voices := p.Voices
	if len(voices) == 0 {
		voices = defaultVoices
	}

	registry := tts.NewRegistry(p.DefaultProfile)
	for profile, voice := range voices {
		if err := registry.Register(profile, newSynthesizer(voice)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (m *Module) result(segmentsPath, clipDir string) modules.ModuleResult {
	return modules.ModuleResult{
		Outputs: map[string]string{
			"segments": segmentsPath,
			"clips":    clipDir,
		},
	}
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
				Name:        "voices",
				Description: "Voice profile tag to TTS voice name",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "defaultProfile",
				Description: "Fallback voice profile tag (default: female)",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "segmentsName",
				Description: "Output segments file name",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "clipDirName",
				Description: "Directory for per-segment clips",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "segments",
				Description: "Segment timeline with dubbed clip paths and speeds",
				Patterns:    []string{".json"},
				Type:        string(modules.OutputTypeFile),
			},
			{
				Name:        "clips",
				Description: "Per-segment dubbed speech clips",
				Type:        string(modules.OutputTypeDirectory),
			},
		},
	}
}
