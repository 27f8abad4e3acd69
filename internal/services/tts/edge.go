package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandExecutor abstracts command execution so the edge-tts CLI can be
// mocked in tests.
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, name string, args []string) ([]byte, error)
}

// RealCommandExecutor runs commands with os/exec
type RealCommandExecutor struct{}

// ExecuteCommand runs the named command and returns its combined output
func (e *RealCommandExecutor) ExecuteCommand(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// EdgeSynthesizer renders speech with the edge-tts CLI. Each instance is
// bound to one neural voice, so a registry of EdgeSynthesizers is a registry
// of voices.
type EdgeSynthesizer struct {
	Voice string
	cmd   CommandExecutor
}

// NewEdgeSynthesizer creates a synthesizer for the given neural voice
func NewEdgeSynthesizer(voice string) *EdgeSynthesizer {
	return &EdgeSynthesizer{Voice: voice, cmd: &RealCommandExecutor{}}
}

// NewEdgeSynthesizerWithExecutor creates a synthesizer with a mockable
// command executor.
func NewEdgeSynthesizerWithExecutor(voice string, cmd CommandExecutor) *EdgeSynthesizer {
	return &EdgeSynthesizer{Voice: voice, cmd: cmd}
}

// Synthesize renders text at the given speed into outPath. edge-tts writes
// mp3; the clip is transcoded to WAV in place so downstream PCM work sees a
// uniform format.
func (s *EdgeSynthesizer) Synthesize(ctx context.Context, text, outPath string, speed float64) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("cannot synthesize empty text")
	}

	tmpPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".mp3"
	args := []string{
		"--text", text,
		"--voice", s.Voice,
		"--rate", RatePercent(speed),
		"--write-media", tmpPath,
	}
	if out, err := s.cmd.ExecuteCommand(ctx, "edge-tts", args); err != nil {
		return fmt.Errorf("edge-tts failed: %w (output: %s)", err, string(out))
	}

	convertArgs := []string{
		"-y",
		"-i", tmpPath,
		"-ar", "24000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outPath,
		"-loglevel", "error",
	}
	if out, err := s.cmd.ExecuteCommand(ctx, "ffmpeg", convertArgs); err != nil {
		return fmt.Errorf("failed to convert synthesized clip to WAV: %w (output: %s)", err, string(out))
	}
	_ = os.Remove(tmpPath)

	return nil
}

// RatePercent converts a playback-speed multiplier to the signed percentage
// string edge-tts expects ("+30%", "-20%").
func RatePercent(speed float64) string {
	percent := int(math.Round((speed - 1.0) * 100))
	return fmt.Sprintf("%+d%%", percent)
}
