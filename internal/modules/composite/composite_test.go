package composite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/dubflow/dubflow/internal/wavio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSilenceWAV(t *testing.T, path string, durationMS int64) {
	t.Helper()
	clip, err := wavio.NewSilence(durationMS, 8000, 1, 16)
	require.NoError(t, err)
	require.NoError(t, clip.WriteFile(path))
}

// writeToneWAV writes a constant-amplitude clip so mixed regions are visible
func writeToneWAV(t *testing.T, path string, durationMS int64, value int) {
	t.Helper()
	clip, err := wavio.NewSilence(durationMS, 8000, 1, 16)
	require.NoError(t, err)
	for i := range clip.Samples() {
		clip.Samples()[i] = value
	}
	require.NoError(t, clip.WriteFile(path))
}

func buildFixture(t *testing.T, dir string) (string, string) {
	t.Helper()

	list := timeline.List{
		{Index: 1, Start: 0, End: 1000, Speaker: "A", Speed: 1.0},
		{Index: 2, Start: 2000, End: 3000, Speaker: "B", Speed: 1.0},
	}
	for i := range list {
		clipPath := filepath.Join(dir, fmt.Sprintf("tts_%d.wav", i+1))
		writeToneWAV(t, clipPath, 800, 300)
		list[i].DubbedAudioPath = clipPath
	}

	segmentsPath := filepath.Join(dir, "segments_dubbed.json")
	require.NoError(t, timeline.Save(segmentsPath, list))

	backgroundPath := filepath.Join(dir, "no_vocals.wav")
	writeSilenceWAV(t, backgroundPath, 5000)

	return segmentsPath, backgroundPath
}

func TestModule_ExecuteOverlay(t *testing.T) {
	tempDir := t.TempDir()
	segmentsPath, backgroundPath := buildFixture(t, tempDir)

	module := New()
	result, err := module.Execute(context.Background(), map[string]interface{}{
		"input":      segmentsPath,
		"output":     tempDir,
		"background": backgroundPath,
	})
	require.NoError(t, err)

	track, err := wavio.ReadFile(result.Outputs["track"])
	require.NoError(t, err)

	// The background defines the track length
	assert.Equal(t, int64(5000), track.DurationMS())

	samples := track.Samples()
	frame := func(ms int64) int { return int(ms * 8000 / 1000) }
	// Speech present inside segment windows, silence between them
	assert.Equal(t, 300, samples[frame(400)])
	assert.Equal(t, 0, samples[frame(1500)])
	assert.Equal(t, 300, samples[frame(2400)])
}

func TestModule_ExecuteSkipsExistingTrack(t *testing.T) {
	tempDir := t.TempDir()
	segmentsPath, backgroundPath := buildFixture(t, tempDir)

	existing := filepath.Join(tempDir, "dubbed_track.wav")
	require.NoError(t, os.WriteFile(existing, []byte("previous run"), 0644))

	module := New()
	result, err := module.Execute(context.Background(), map[string]interface{}{
		"input":      segmentsPath,
		"output":     tempDir,
		"background": backgroundPath,
	})
	require.NoError(t, err)
	assert.Equal(t, existing, result.Outputs["track"])

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(content))
}

func TestModule_ExecuteFailsOnMissingBackground(t *testing.T) {
	tempDir := t.TempDir()
	segmentsPath, _ := buildFixture(t, tempDir)

	module := New()
	_, err := module.Execute(context.Background(), map[string]interface{}{
		"input":      segmentsPath,
		"output":     tempDir,
		"background": filepath.Join(tempDir, "missing.wav"),
	})
	assert.ErrorContains(t, err, "background stem")
}

func TestModule_Validate(t *testing.T) {
	tempDir := t.TempDir()
	segmentsPath, backgroundPath := buildFixture(t, tempDir)

	module := New()

	tests := []struct {
		name    string
		params  map[string]interface{}
		wantErr bool
	}{
		{
			name: "overlay mode with background",
			params: map[string]interface{}{
				"input":      segmentsPath,
				"output":     tempDir,
				"background": backgroundPath,
			},
			wantErr: false,
		},
		{
			name: "overlay mode without background",
			params: map[string]interface{}{
				"input":  segmentsPath,
				"output": tempDir,
			},
			wantErr: true,
		},
		{
			name: "concat mode without source",
			params: map[string]interface{}{
				"input":  segmentsPath,
				"output": tempDir,
				"mode":   "concat",
			},
			wantErr: true,
		},
		{
			name: "unknown mode",
			params: map[string]interface{}{
				"input":      segmentsPath,
				"output":     tempDir,
				"background": backgroundPath,
				"mode":       "stack",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := module.Validate(tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModule_Name(t *testing.T) {
	assert.Equal(t, "composite", New().Name())
}
