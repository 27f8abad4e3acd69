// Package mux writes the final deliverable: the source video with the dubbed
// track as the default audio stream, the original audio preserved, and both
// subtitle files embedded as selectable streams.
package mux

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	modules "github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/dubflow/dubflow/internal/wavio"
)

// execCommand allows us to mock exec.Command in tests
var execCommand = exec.Command

// ProgressFunc receives mux progress as a percentage in [0, 100]
type ProgressFunc func(percent float64)

// Module implements the final mux stage
type Module struct {
	progress ProgressFunc
}

// Params contains the parameters for muxing
type Params struct {
	Video          string `json:"video"`          // Path to source video file
	Input          string `json:"input"`          // Path to dubbed audio track
	OriginalAudio  string `json:"originalAudio"`  // Path to original audio track (optional second stream)
	SourceSubtitle string `json:"sourceSubtitle"` // Path to source-language SRT
	TargetSubtitle string `json:"targetSubtitle"` // Path to target-language SRT
	Output         string `json:"output"`         // Path to output directory
	OutputName     string `json:"outputName"`     // Output video filename (default: dubbed_video.mp4)
	SourceLang     string `json:"sourceLang"`     // ISO 639-2 source language tag (default: eng)
	TargetLang     string `json:"targetLang"`     // ISO 639-2 target language tag (default: ben)
}

// New creates a new mux module
func New() modules.Module {
	return &Module{}
}

// NewWithProgress creates a mux module that reports progress to fn
func NewWithProgress(fn ProgressFunc) modules.Module {
	return &Module{progress: fn}
}

// Name returns the module name
func (m *Module) Name() string {
	return "mux"
}

// Validate checks if the parameters are valid
func (m *Module) Validate(params map[string]interface{}) error {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return err
	}

	if p.Video == "" {
		return &utils.ValidationError{Field: "video", Message: "source video path is required"}
	}
	if err := utils.ValidateInputPath(p.Input, p.Output, ""); err != nil {
		return err
	}
	if err := utils.ValidateOutputPath(p.Output); err != nil {
		return err
	}

	if err := utils.ValidateRequiredDependency("ffmpeg"); err != nil {
		return err
	}
	return utils.ValidateRequiredDependency("ffprobe")
}

// Execute fits the dubbed track to the video length and muxes everything
// into the output container.
func (m *Module) Execute(ctx context.Context, params map[string]interface{}) (modules.ModuleResult, error) {
	var p Params
	if err := modules.ParseParams(params, &p); err != nil {
		return modules.ModuleResult{}, err
	}

	if p.OutputName == "" {
		p.OutputName = "dubbed_video.mp4"
	}
	if p.SourceLang == "" {
		p.SourceLang = "eng"
	}
	if p.TargetLang == "" {
		p.TargetLang = "ben"
	}
	if p.Output == "" {
		return modules.ModuleResult{}, fmt.Errorf("output directory path is required")
	}

	video := utils.ResolveOutputPath(p.Video, p.Output)
	track := utils.ResolveOutputPath(p.Input, p.Output)
	outputPath := filepath.Join(p.Output, p.OutputName)

	if utils.FileExists(outputPath) {
		utils.LogInfo("Dubbed video %s already exists, skipping mux", outputPath)
		return m.result(outputPath), nil
	}
	if err := os.MkdirAll(p.Output, 0755); err != nil {
		return modules.ModuleResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	videoDurationMS, err := probeDurationMS(video)
	if err != nil {
		return modules.ModuleResult{}, err
	}

	fittedTrack, cleanup, err := fitTrack(track, videoDurationMS)
	if err != nil {
		return modules.ModuleResult{}, err
	}
	defer cleanup()

	if err := m.mux(ctx, p, video, fittedTrack, outputPath, videoDurationMS); err != nil {
		return modules.ModuleResult{}, err
	}

	utils.LogSuccess("Muxed dubbed video to %s", outputPath)
	return m.result(outputPath), nil
}

func (m *Module) result(outputPath string) modules.ModuleResult {
	return modules.ModuleResult{
		Outputs: map[string]string{
			"video": outputPath,
		},
	}
}

// mux runs ffmpeg with -progress pipe:1 and parses its key=value stream
func (m *Module) mux(ctx context.Context, p Params, video, track, outputPath string, videoDurationMS int64) error {
	args := []string{
		"-y",
		"-i", video,
		"-i", track,
	}

	originalAudio := ""
	if p.OriginalAudio != "" {
		originalAudio = utils.ResolveOutputPath(p.OriginalAudio, p.Output)
	}
	sourceSub := ""
	if p.SourceSubtitle != "" {
		sourceSub = utils.ResolveOutputPath(p.SourceSubtitle, p.Output)
	}
	targetSub := ""
	if p.TargetSubtitle != "" {
		targetSub = utils.ResolveOutputPath(p.TargetSubtitle, p.Output)
	}

	inputIndex := 2
	for _, extra := range []string{originalAudio, sourceSub, targetSub} {
		if extra != "" {
			args = append(args, "-i", extra)
		}
	}

	args = append(args, "-map", "0:v", "-map", "1:a")
	audioStreams := 1
	if originalAudio != "" {
		args = append(args, "-map", fmt.Sprintf("%d:a", inputIndex))
		inputIndex++
		audioStreams++
	}
	subStreams := 0
	for _, sub := range []string{sourceSub, targetSub} {
		if sub != "" {
			args = append(args, "-map", fmt.Sprintf("%d:s", inputIndex))
			inputIndex++
			subStreams++
		}
	}

	args = append(args, "-c:v", "copy", "-c:a", "aac")
	if subStreams > 0 {
		args = append(args, "-c:s", "mov_text")
	}

	// The dubbed track is the default; the original keeps its language tag
	args = append(args, "-metadata:s:a:0", "language="+p.TargetLang, "-disposition:a:0", "default")
	if audioStreams > 1 {
		args = append(args, "-metadata:s:a:1", "language="+p.SourceLang, "-disposition:a:1", "0")
	}
	if sourceSub != "" {
		args = append(args, "-metadata:s:s:0", "language="+p.SourceLang)
	}
	if targetSub != "" {
		subIndex := 0
		if sourceSub != "" {
			subIndex = 1
		}
		args = append(args, fmt.Sprintf("-metadata:s:s:%d", subIndex), "language="+p.TargetLang)
	}

	args = append(args, "-progress", "pipe:1", "-loglevel", "error", outputPath)

	cmd := execCommand("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to ffmpeg output: %w", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	m.reportProgress(stdout, videoDurationMS)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w", err)
	}
	return nil
}

// reportProgress consumes ffmpeg's progress stream. out_time_ms is reported
// in microseconds despite the name.
func (m *Module) reportProgress(r io.Reader, videoDurationMS int64) {
	progress := m.progress
	if progress == nil {
		lastLogged := -10.0
		progress = func(percent float64) {
			if percent-lastLogged >= 10 {
				utils.LogInfo("Muxing: %.0f%%", percent)
				lastLogged = percent
			}
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "out_time_ms="):
			raw := strings.TrimPrefix(line, "out_time_ms=")
			outTimeUS, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || videoDurationMS <= 0 {
				continue
			}
			percent := float64(outTimeUS) / 1000 / float64(videoDurationMS) * 100
			if percent > 100 {
				percent = 100
			}
			progress(percent)
		case line == "progress=end":
			progress(100)
		}
	}
}

// fitTrack pads or trims the dubbed track to the video duration so the mux
// never drops frames or leaves a silent freeze at the tail. Returns the path
// to use and a cleanup for any temporary file.
func fitTrack(trackPath string, videoDurationMS int64) (string, func(), error) {
	noop := func() {}

	clip, err := wavio.ReadFile(trackPath)
	if err != nil {
		return "", noop, fmt.Errorf("failed to load dubbed track: %w", err)
	}

	diff := videoDurationMS - clip.DurationMS()
	if diff == 0 {
		return trackPath, noop, nil
	}
	if diff > 0 {
		utils.LogVerbose("Padding dubbed track %dms to match video", diff)
		clip.AppendSilence(diff)
	} else {
		utils.LogWarning("Dubbed track overruns video by %dms, trimming", -diff)
		clip.TrimTo(videoDurationMS)
	}

	fitted := strings.TrimSuffix(trackPath, filepath.Ext(trackPath)) + "_fitted.wav"
	if err := clip.WriteFile(fitted); err != nil {
		return "", noop, fmt.Errorf("failed to write fitted track: %w", err)
	}
	return fitted, func() {
		if err := os.Remove(fitted); err != nil {
			utils.LogWarning("Failed to remove fitted track: %v", err)
		}
	}, nil
}

// probeDurationMS reads a media file's duration with ffprobe
func probeDurationMS(path string) (int64, error) {
	cmd := execCommand(
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return timeline.FromSeconds(seconds), nil
}

// GetIO returns the module's input/output specification
func (m *Module) GetIO() modules.ModuleIO {
	return modules.ModuleIO{
		RequiredInputs: []modules.ModuleInput{
			{
				Name:        "video",
				Description: "Path to source video file",
				Patterns:    utils.VideoExtensions,
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "input",
				Description: "Path to dubbed audio track",
				Patterns:    []string{".wav"},
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
				Name:        "originalAudio",
				Description: "Original audio track to keep as a second stream",
				Patterns:    []string{".wav"},
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "sourceSubtitle",
				Description: "Source-language SRT file",
				Patterns:    []string{".srt"},
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "targetSubtitle",
				Description: "Target-language SRT file",
				Patterns:    []string{".srt"},
				Type:        string(modules.InputTypeFile),
			},
			{
				Name:        "outputName",
				Description: "Output video filename",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "sourceLang",
				Description: "ISO 639-2 source language tag (default: eng)",
				Type:        string(modules.InputTypeData),
			},
			{
				Name:        "targetLang",
				Description: "ISO 639-2 target language tag (default: ben)",
				Type:        string(modules.InputTypeData),
			},
		},
		ProducedOutputs: []modules.ModuleOutput{
			{
				Name:        "video",
				Description: "Dubbed video with embedded subtitles",
				Patterns:    []string{".mp4"},
				Type:        string(modules.OutputTypeFile),
			},
		},
	}
}
