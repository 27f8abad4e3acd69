// Package workflow loads YAML dubbing workflows and runs their stages in
// order.
package workflow

import (
	"sync"
	"time"

	"github.com/dubflow/dubflow/internal/config"
	modules "github.com/dubflow/dubflow/internal/mod"
)

// Workflow represents a complete dubbing workflow
type Workflow struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Input       string `yaml:"input,omitempty"`
	Output      string `yaml:"output"`
	Steps       []Step `yaml:"steps"`

	// Registry holds all available modules
	registry    *modules.ModuleRegistry
	inputConfig *config.InputConfig
}

// Step represents a single processing stage in a workflow
type Step struct {
	Name       string                 `yaml:"name"`
	Module     string                 `yaml:"module"`
	Parameters map[string]interface{} `yaml:"parameters"`
	// SkipIf names a path (relative to the output directory unless absolute)
	// whose existence lets the runner skip this step on re-entry.
	SkipIf string `yaml:"skipIf,omitempty"`
}

// WorkflowState represents the progress of one workflow execution
type WorkflowState struct {
	sync.RWMutex // Protects all fields below

	ID        string
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Status    WorkflowStatus
	Steps     []StepState
	History   []WorkflowEvent
}

// StepState records the outcome of one step
type StepState struct {
	Name    string
	Module  string
	Status  StepStatus
	Outputs map[string]string
}

// WorkflowEvent represents an event that occurred during workflow execution
type WorkflowEvent struct {
	ID        string
	Timestamp time.Time
	Step      string
	Type      string
	Message   string
	Data      map[string]interface{}
}

// StepStatus represents the current status of a workflow step
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusRunning  StepStatus = "running"
	StepStatusComplete StepStatus = "complete"
	StepStatusFailed   StepStatus = "failed"
	StepStatusSkipped  StepStatus = "skipped"
)

// WorkflowStatus represents the current status of the workflow
type WorkflowStatus string

const (
	WorkflowStatusPending  WorkflowStatus = "pending"
	WorkflowStatusRunning  WorkflowStatus = "running"
	WorkflowStatusComplete WorkflowStatus = "complete"
	WorkflowStatusFailed   WorkflowStatus = "failed"
)
