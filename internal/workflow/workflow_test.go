package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dubflow/dubflow/internal/config"
	"github.com/dubflow/dubflow/internal/mod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModule records executions and returns canned results
type stubModule struct {
	name        string
	validateErr error
	executeErr  error
	executions  *[]string
	lastParams  map[string]interface{}
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) GetIO() mod.ModuleIO {
	return mod.ModuleIO{
		RequiredInputs: []mod.ModuleInput{
			{Name: "input", Type: string(mod.InputTypeFile)},
			{Name: "output", Type: string(mod.InputTypeDirectory)},
		},
	}
}

func (m *stubModule) Validate(map[string]interface{}) error { return m.validateErr }

func (m *stubModule) Execute(_ context.Context, params map[string]interface{}) (mod.ModuleResult, error) {
	*m.executions = append(*m.executions, m.name)
	m.lastParams = params
	if m.executeErr != nil {
		return mod.ModuleResult{}, m.executeErr
	}
	return mod.ModuleResult{Outputs: map[string]string{"artifact": "/out/" + m.name}}, nil
}

func newTestWorkflow(t *testing.T, stubs ...*stubModule) (*Workflow, *[]string) {
	t.Helper()

	executions := &[]string{}
	registry := mod.NewModuleRegistry()
	w := &Workflow{
		Name:     "Test Dub",
		Output:   t.TempDir(),
		registry: registry,
	}
	for _, stub := range stubs {
		stub.executions = executions
		require.NoError(t, registry.Register(stub))
		w.Steps = append(w.Steps, Step{Name: stub.name + "-step", Module: stub.name})
	}
	return w, executions
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	w, executions := newTestWorkflow(t,
		&stubModule{name: "first"},
		&stubModule{name: "second"},
		&stubModule{name: "third"})

	state, err := w.ExecuteWithState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, *executions)
	assert.Equal(t, WorkflowStatusComplete, state.Status)
	for _, step := range state.Steps {
		assert.Equal(t, StepStatusComplete, step.Status)
		assert.Equal(t, map[string]string{"artifact": "/out/" + step.Module}, step.Outputs)
	}

	// started and completed events per step, each with a unique id
	assert.Len(t, state.History, 6)
	seen := map[string]bool{}
	for _, event := range state.History {
		assert.False(t, seen[event.ID], "event ids must be unique")
		seen[event.ID] = true
	}
}

func TestExecuteStopsOnFailure(t *testing.T) {
	w, executions := newTestWorkflow(t,
		&stubModule{name: "first"},
		&stubModule{name: "broken", executeErr: errors.New("collaborator crashed")},
		&stubModule{name: "never"})

	state, err := w.ExecuteWithState(context.Background())
	require.ErrorContains(t, err, "collaborator crashed")

	assert.Equal(t, []string{"first", "broken"}, *executions)
	assert.Equal(t, WorkflowStatusFailed, state.Status)
	assert.Equal(t, StepStatusFailed, state.StepStatusOf("broken-step"))
	assert.Equal(t, StepStatusPending, state.StepStatusOf("never-step"))
	// Failed runs still record when they ended
	assert.False(t, state.EndTime.IsZero())
}

func TestExecuteValidatesAllStepsUpFront(t *testing.T) {
	w, executions := newTestWorkflow(t,
		&stubModule{name: "first"},
		&stubModule{name: "misconfigured", validateErr: errors.New("bad params")})

	_, err := w.ExecuteWithState(context.Background())
	require.ErrorContains(t, err, "bad params")

	// Nothing ran: the broken step was caught before the first executed
	assert.Empty(t, *executions)
}

func TestExecuteSkipsStepWithExistingOutput(t *testing.T) {
	w, executions := newTestWorkflow(t,
		&stubModule{name: "expensive"},
		&stubModule{name: "cheap"})

	artifact := filepath.Join(w.Output, "transcript.json")
	require.NoError(t, os.WriteFile(artifact, []byte("{}"), 0644))
	w.Steps[0].SkipIf = "${output}/transcript.json"

	state, err := w.ExecuteWithState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"cheap"}, *executions)
	assert.Equal(t, StepStatusSkipped, state.StepStatusOf("expensive-step"))
	assert.Equal(t, WorkflowStatusComplete, state.Status)
}

func TestExecuteResolvesOutputPlaceholder(t *testing.T) {
	stub := &stubModule{name: "only"}
	w, _ := newTestWorkflow(t, stub)
	w.Input = "/media/source.mp4"
	w.Steps[0].Parameters = map[string]interface{}{
		"segments": "${output}/segments.json",
		"retries":  3,
	}

	_, err := w.ExecuteWithState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(w.Output, "segments.json"), stub.lastParams["segments"])
	assert.Equal(t, 3, stub.lastParams["retries"])
	// The first step inherits the workflow input and output
	assert.Equal(t, "/media/source.mp4", stub.lastParams["input"])
	assert.Equal(t, w.Output, stub.lastParams["output"])
}

func TestExecuteHonorsCancellation(t *testing.T) {
	w, executions := newTestWorkflow(t, &stubModule{name: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := w.ExecuteWithState(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, WorkflowStatusFailed, state.Status)
	assert.Empty(t, *executions)
}

func TestExecuteWritesStateFile(t *testing.T) {
	w, _ := newTestWorkflow(t, &stubModule{name: "only"})

	require.NoError(t, w.Execute(context.Background()))

	statePath := filepath.Join(w.Output, "Test_Dub.state.yaml")
	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: complete")
	assert.Contains(t, string(data), "only-step")
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	workflowPath := filepath.Join(tempDir, "dub.yaml")
	yaml := fmt.Sprintf(`name: Dub Pipeline
description: Full dubbing run
output: %s
steps:
  - name: extract
    module: extractaudio
    parameters:
      input: video.mp4
  - name: stems
    module: separate
    skipIf: ${output}/htdemucs
`, tempDir)
	require.NoError(t, os.WriteFile(workflowPath, []byte(yaml), 0644))

	cfg, err := config.NewInputConfig("", "", workflowPath)
	require.NoError(t, err)

	w, err := LoadFromFile(cfg)
	require.NoError(t, err)

	assert.Equal(t, "Dub Pipeline", w.Name)
	assert.Equal(t, tempDir, w.Output)
	require.Len(t, w.Steps, 2)
	assert.Equal(t, "extractaudio", w.Steps[0].Module)
	assert.Equal(t, "${output}/htdemucs", w.Steps[1].SkipIf)
}

func TestLoadFromFileRejectsEmptyWorkflow(t *testing.T) {
	tempDir := t.TempDir()
	workflowPath := filepath.Join(tempDir, "empty.yaml")
	require.NoError(t, os.WriteFile(workflowPath, []byte("name: Empty\noutput: /tmp\n"), 0644))

	cfg, err := config.NewInputConfig("", "", workflowPath)
	require.NoError(t, err)

	_, err = LoadFromFile(cfg)
	assert.ErrorContains(t, err, "no steps")
}
