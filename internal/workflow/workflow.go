package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dubflow/dubflow/internal/config"
	"github.com/dubflow/dubflow/internal/mod"
	"github.com/dubflow/dubflow/internal/modules/composite"
	"github.com/dubflow/dubflow/internal/modules/extractaudio"
	"github.com/dubflow/dubflow/internal/modules/mux"
	"github.com/dubflow/dubflow/internal/modules/review"
	"github.com/dubflow/dubflow/internal/modules/separate"
	"github.com/dubflow/dubflow/internal/modules/synthesize"
	"github.com/dubflow/dubflow/internal/modules/transcribe"
	"github.com/dubflow/dubflow/internal/modules/translate"
	"github.com/dubflow/dubflow/internal/utils"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// LoadFromFile loads a workflow from a YAML file
func LoadFromFile(inputConfig *config.InputConfig) (*Workflow, error) {
	data, err := os.ReadFile(inputConfig.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var workflow Workflow
	if err := yaml.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}
	if len(workflow.Steps) == 0 {
		return nil, fmt.Errorf("workflow has no steps")
	}

	workflow.inputConfig = inputConfig
	workflow.registry = mod.NewModuleRegistry()
	if err := registerModules(workflow.registry); err != nil {
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	if inputConfig.InputPath != "" {
		workflow.Input = inputConfig.InputPath
	}
	if inputConfig.OutputPath != "" {
		workflow.Output = inputConfig.OutputPath
	}
	if workflow.Output == "" {
		return nil, fmt.Errorf("workflow output directory is required")
	}

	return &workflow, nil
}

// registerModules registers all pipeline stages with the registry
func registerModules(registry *mod.ModuleRegistry) error {
	all := []mod.Module{
		extractaudio.New(),
		separate.New(),
		transcribe.New(),
		translate.New(),
		review.New(),
		synthesize.New(),
		composite.New(),
		mux.New(),
	}
	for _, m := range all {
		if err := registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// SetInputPath overrides the workflow's input file
func (w *Workflow) SetInputPath(path string) {
	w.Input = path
}

// Validate checks every step against its module before anything runs, so a
// typo in step six does not surface after an hour of transcription.
func (w *Workflow) Validate() error {
	for i, step := range w.Steps {
		module, err := w.registry.Get(step.Module)
		if err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		if err := module.Validate(w.stepParams(step, i)); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	return nil
}

// stepParams resolves a step's parameters against the workflow input/output
func (w *Workflow) stepParams(step Step, index int) map[string]interface{} {
	params := make(map[string]interface{}, len(step.Parameters)+2)
	for k, v := range step.Parameters {
		if strVal, ok := v.(string); ok {
			params[k] = utils.ResolveOutputPath(strVal, w.Output)
			continue
		}
		params[k] = v
	}

	// The first step consumes the workflow input unless it says otherwise
	if index == 0 && w.Input != "" {
		if _, ok := params["input"]; !ok {
			params["input"] = w.Input
		}
	}
	params["output"] = w.Output
	return params
}

// ExecuteWithState runs the workflow stages strictly in order and returns
// the run state alongside any error.
func (w *Workflow) ExecuteWithState(ctx context.Context) (*WorkflowState, error) {
	state := &WorkflowState{
		ID:        uuid.New().String(),
		Name:      w.Name,
		StartTime: time.Now(),
		Status:    WorkflowStatusRunning,
		Steps:     make([]StepState, len(w.Steps)),
	}
	for i, step := range w.Steps {
		state.Steps[i] = StepState{Name: step.Name, Module: step.Module, Status: StepStatusPending}
	}
	// Failed runs get an end time too; the state file records every outcome
	defer func() { state.EndTime = time.Now() }()

	if err := w.Validate(); err != nil {
		state.Status = WorkflowStatusFailed
		return state, err
	}

	for i, step := range w.Steps {
		// Stages are expensive; honor cancellation at every boundary
		select {
		case <-ctx.Done():
			state.Status = WorkflowStatusFailed
			state.AddEvent(step.Name, "cancelled", "Workflow cancelled", nil)
			return state, ctx.Err()
		default:
		}

		if w.shouldSkip(step) {
			utils.LogInfo("Step %s: declared output exists, skipping", step.Name)
			state.SetStepStatus(step.Name, StepStatusSkipped)
			state.AddEvent(step.Name, "skipped", fmt.Sprintf("Skipped %s: output %s exists", step.Name, step.SkipIf), nil)
			continue
		}

		module, err := w.registry.Get(step.Module)
		if err != nil {
			state.Status = WorkflowStatusFailed
			return state, err
		}

		state.SetStepStatus(step.Name, StepStatusRunning)
		state.AddEvent(step.Name, "started", fmt.Sprintf("Started executing %s", step.Name), nil)
		utils.LogInfo("Step %d/%d: %s (%s)", i+1, len(w.Steps), step.Name, step.Module)

		result, err := module.Execute(ctx, w.stepParams(step, i))
		if err != nil {
			state.SetStepStatus(step.Name, StepStatusFailed)
			state.Status = WorkflowStatusFailed
			state.AddEvent(step.Name, "failed", fmt.Sprintf("Failed executing %s: %v", step.Name, err),
				map[string]interface{}{"error": err.Error()})
			return state, fmt.Errorf("step %q failed: %w", step.Name, err)
		}

		state.SetStepStatus(step.Name, StepStatusComplete)
		state.SetStepOutputs(step.Name, result.Outputs)
		state.AddEvent(step.Name, "completed", fmt.Sprintf("Completed executing %s", step.Name), result.Statistics)
	}

	state.Status = WorkflowStatusComplete
	return state, nil
}

// shouldSkip reports whether a step's declared output already exists
func (w *Workflow) shouldSkip(step Step) bool {
	if step.SkipIf == "" {
		return false
	}
	path := utils.ResolveOutputPath(step.SkipIf, w.Output)
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Output, path)
	}
	return utils.FileExists(path)
}

// Execute runs the workflow and persists the run state next to its outputs
func (w *Workflow) Execute(ctx context.Context) error {
	state, execErr := w.ExecuteWithState(ctx)

	sanitizedName := strings.ReplaceAll(w.Name, " ", "_")
	statePath := filepath.Join(w.Output, sanitizedName+".state.yaml")
	if err := w.SaveWorkflowState(state, statePath); err != nil {
		if execErr != nil {
			utils.LogWarning("Failed to save workflow state: %v", err)
			return execErr
		}
		return fmt.Errorf("failed to save workflow state: %w", err)
	}

	return execErr
}
