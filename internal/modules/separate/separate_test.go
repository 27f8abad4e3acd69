package separate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/dubflow/dubflow/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	result := m.Run()
	execCommand = exec.Command
	utils.ExecLookPath = exec.LookPath
	os.Exit(result)
}

// fakeExecCommand creates a mock command that does nothing
func fakeExecCommand(command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

// TestHelperProcess is not a real test, it's used to mock exec.Command
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Exit(0)
}

func writeStems(t *testing.T, outputDir, base string) (string, string) {
	t.Helper()
	stemDir := filepath.Join(outputDir, "htdemucs", base)
	require.NoError(t, os.MkdirAll(stemDir, 0755))

	vocals := filepath.Join(stemDir, "vocals.wav")
	background := filepath.Join(stemDir, "no_vocals.wav")
	require.NoError(t, os.WriteFile(vocals, []byte("vocals"), 0644))
	require.NoError(t, os.WriteFile(background, []byte("background"), 0644))
	return vocals, background
}

func TestModule_ExecuteSkipsExistingStems(t *testing.T) {
	execCommand = fakeExecCommand
	defer func() { execCommand = exec.Command }()

	tempDir := t.TempDir()
	audioPath := filepath.Join(tempDir, "lecture.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0644))
	vocals, background := writeStems(t, tempDir, "lecture")

	module := New()
	result, err := module.Execute(context.Background(), map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	require.NoError(t, err)
	assert.Equal(t, vocals, result.Outputs["vocals"])
	assert.Equal(t, background, result.Outputs["background"])
}

func TestModule_ExecuteFailsWhenStemsNotProduced(t *testing.T) {
	// The fake demucs writes nothing, so the stem check must fail
	execCommand = fakeExecCommand
	defer func() { execCommand = exec.Command }()

	tempDir := t.TempDir()
	audioPath := filepath.Join(tempDir, "lecture.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0644))

	module := New()
	_, err := module.Execute(context.Background(), map[string]interface{}{
		"input":  audioPath,
		"output": tempDir,
	})
	assert.ErrorContains(t, err, "expected stem")
}

func TestModule_Validate(t *testing.T) {
	utils.ExecLookPath = func(file string) (string, error) { return file, nil }
	defer func() { utils.ExecLookPath = exec.LookPath }()

	tempDir := t.TempDir()
	audioPath := filepath.Join(tempDir, "lecture.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0644))

	module := New()

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
	assert.Equal(t, "separate", New().Name())
}
