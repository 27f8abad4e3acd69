package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dubflow/dubflow/internal/utils"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// AddEvent appends an event to the workflow history in a thread-safe manner
func (s *WorkflowState) AddEvent(step, eventType, message string, data map[string]interface{}) {
	s.Lock()
	defer s.Unlock()
	s.History = append(s.History, WorkflowEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Step:      step,
		Type:      eventType,
		Message:   message,
		Data:      data,
	})
}

// SetStepStatus updates a step's status in a thread-safe manner
func (s *WorkflowState) SetStepStatus(name string, status StepStatus) {
	s.Lock()
	defer s.Unlock()
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			s.Steps[i].Status = status
			return
		}
	}
}

// SetStepOutputs records a step's outputs in a thread-safe manner
func (s *WorkflowState) SetStepOutputs(name string, outputs map[string]string) {
	s.Lock()
	defer s.Unlock()
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			s.Steps[i].Outputs = outputs
			return
		}
	}
}

// StepStatusOf returns a step's status in a thread-safe manner
func (s *WorkflowState) StepStatusOf(name string) StepStatus {
	s.RLock()
	defer s.RUnlock()
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return s.Steps[i].Status
		}
	}
	return StepStatusPending
}

// SaveWorkflowState writes a run summary next to the workflow outputs
func (w *Workflow) SaveWorkflowState(state *WorkflowState, outputPath string) error {
	state.RLock()
	summary := map[string]interface{}{
		"id":        state.ID,
		"name":      state.Name,
		"status":    state.Status,
		"startTime": state.StartTime,
		"endTime":   state.EndTime,
		"steps":     make([]map[string]interface{}, 0, len(state.Steps)),
	}
	for _, step := range state.Steps {
		summary["steps"] = append(summary["steps"].([]map[string]interface{}), map[string]interface{}{
			"name":    step.Name,
			"module":  step.Module,
			"status":  step.Status,
			"outputs": step.Outputs,
		})
	}
	state.RUnlock()

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	if err := utils.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow state: %w", err)
	}
	return nil
}
