package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/wavio"
)

// ErrInvalidRange is returned when a gap extraction is requested for a zero
// or negative duration. Callers skip non-positive gaps instead of relying on
// the extractor to quietly return nothing.
var ErrInvalidRange = errors.New("gap duration must be positive")

// CommandExecutor abstracts command execution so ffmpeg can be mocked
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

// GapExtractor pulls slices of original audio (music, ambience) out of the
// source media for use as gap filler and trailing padding.
type GapExtractor struct {
	cmd      CommandExecutor
	ctx      context.Context
	scratch  string
	gapCount int
}

// NewGapExtractor creates an extractor that writes slices into scratchDir
func NewGapExtractor(ctx context.Context, scratchDir string) *GapExtractor {
	return &GapExtractor{cmd: &RealCommandExecutor{}, ctx: ctx, scratch: scratchDir}
}

// NewGapExtractorWithExecutor creates an extractor with a mock-friendly
// command executor.
func NewGapExtractorWithExecutor(ctx context.Context, scratchDir string, cmd CommandExecutor) *GapExtractor {
	return &GapExtractor{cmd: cmd, ctx: ctx, scratch: scratchDir}
}

// Extract decodes exactly [startMS, startMS+durationMS) of the source's
// audio track into a WAV slice and loads it.
func (g *GapExtractor) Extract(source string, startMS, durationMS int64) (*wavio.Clip, error) {
	if durationMS <= 0 {
		return nil, fmt.Errorf("%w: got %dms", ErrInvalidRange, durationMS)
	}

	g.gapCount++
	outPath := filepath.Join(g.scratch, fmt.Sprintf("gap_%d.wav", g.gapCount))

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", timeline.SecondsOf(startMS)),
		"-t", fmt.Sprintf("%.3f", timeline.SecondsOf(durationMS)),
		"-i", source,
		"-map", "a",
		"-c:a", "pcm_s16le",
		outPath,
		"-loglevel", "error",
	}
	if out, err := g.cmd.ExecuteCommand(g.ctx, "ffmpeg", args); err != nil {
		return nil, fmt.Errorf("ffmpeg gap extraction failed: %w (output: %s)", err, string(out))
	}

	if _, err := os.Stat(outPath); err != nil {
		return nil, fmt.Errorf("gap slice was not produced: %w", err)
	}
	return wavio.ReadFile(outPath)
}
