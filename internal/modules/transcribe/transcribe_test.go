package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dubflow/dubflow/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	output      []byte
	err         error
	lookPathErr error
	calls       int
	lastName    string
	lastArgs    []string
}

func (m *mockExecutor) ExecuteCommand(_ context.Context, name string, args []string) ([]byte, error) {
	m.calls++
	m.lastName = name
	m.lastArgs = args
	return m.output, m.err
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.lookPathErr != nil {
		return "", m.lookPathErr
	}
	return file, nil
}

const transcriberOutput = `{
	"segments": [
		{"start": 0.0, "end": 2.5, "speaker": "SPEAKER_00", "gender": "male", "text": "Hello there."},
		{"start": 3.0, "end": 5.25, "speaker": "SPEAKER_01", "gender": "female", "text": "  Hi.  "},
		{"start": 6.0, "end": 7.0, "speaker": "SPEAKER_00", "gender": "male", "text": "   "}
	]
}`

func writeAudioFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "vocals.wav")
	require.NoError(t, os.WriteFile(path, []byte("dummy audio"), 0644))
	return path
}

func TestModule_Execute(t *testing.T) {
	tempDir := t.TempDir()
	audioPath := writeAudioFixture(t, tempDir)

	exec := &mockExecutor{output: []byte(transcriberOutput)}
	module := NewWithExecutor(exec)

	result, err := module.Execute(context.Background(), map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	require.NoError(t, err)

	assert.Equal(t, "whisper-diarize", exec.lastName)
	assert.Contains(t, exec.lastArgs, audioPath)

	segments, err := timeline.Load(result.Outputs["segments"])
	require.NoError(t, err)

	// Blank-text spans are dropped without leaving index gaps
	require.Len(t, segments, 2)
	assert.Equal(t, 1, segments[0].Index)
	assert.Equal(t, int64(0), segments[0].Start)
	assert.Equal(t, int64(2500), segments[0].End)
	assert.Equal(t, "Hello there.", segments[0].Text)
	assert.Equal(t, 2, segments[1].Index)
	assert.Equal(t, int64(5250), segments[1].End)
	assert.Equal(t, "Hi.", segments[1].Text)

	subtitles, err := os.ReadFile(result.Outputs["subtitles"])
	require.NoError(t, err)
	assert.Contains(t, string(subtitles), "00:00:00,000 --> 00:00:02,500")
	assert.Contains(t, string(subtitles), "Hello there.")
}

func TestModule_ExecuteSkipsExistingSegments(t *testing.T) {
	tempDir := t.TempDir()
	audioPath := writeAudioFixture(t, tempDir)

	segmentsPath := filepath.Join(tempDir, "segments.json")
	require.NoError(t, os.WriteFile(segmentsPath, []byte("[]"), 0644))

	exec := &mockExecutor{output: []byte(transcriberOutput)}
	module := NewWithExecutor(exec)

	result, err := module.Execute(context.Background(), map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	require.NoError(t, err)
	assert.Equal(t, segmentsPath, result.Outputs["segments"])
	assert.Zero(t, exec.calls, "transcriber must not run when segments exist")
}

func TestModule_ExecuteFailsOnEmptyTranscript(t *testing.T) {
	tempDir := t.TempDir()
	audioPath := writeAudioFixture(t, tempDir)

	exec := &mockExecutor{output: []byte(`{"segments": []}`)}
	module := NewWithExecutor(exec)

	_, err := module.Execute(context.Background(), map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	assert.ErrorContains(t, err, "no speech")
}

func TestModule_ExecutePropagatesTranscriberFailure(t *testing.T) {
	tempDir := t.TempDir()
	audioPath := writeAudioFixture(t, tempDir)

	exec := &mockExecutor{err: errors.New("model download failed")}
	module := NewWithExecutor(exec)

	_, err := module.Execute(context.Background(), map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	assert.ErrorContains(t, err, "model download failed")
}

func TestParseTranscriptRejectsInvalidTimeline(t *testing.T) {
	// Spans out of order fail timeline validation
	_, err := parseTranscript([]byte(`{
		"segments": [
			{"start": 5.0, "end": 6.0, "speaker": "A", "text": "later"},
			{"start": 1.0, "end": 2.0, "speaker": "A", "text": "earlier"}
		]
	}`))
	assert.Error(t, err)

	_, err = parseTranscript([]byte("not json"))
	assert.Error(t, err)
}

func TestModule_Validate(t *testing.T) {
	tempDir := t.TempDir()
	audioPath := writeAudioFixture(t, tempDir)

	module := NewWithExecutor(&mockExecutor{})

	err := module.Validate(map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	assert.NoError(t, err)

	err = module.Validate(map[string]interface{}{
		"output": tempDir,
	})
	assert.Error(t, err)
}

func TestModule_Name(t *testing.T) {
	assert.Equal(t, "transcribe", New().Name())
}
