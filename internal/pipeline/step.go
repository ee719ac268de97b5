package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStepNotFound is returned when a pipeline references a step name that was
// never registered.
var ErrStepNotFound = errors.New("pipeline: step not found")

// Step is a named unit of work inside a pipeline. Implementations read their
// inputs from the run context and/or their params, write outputs back into the
// context, and report progress through the task manager when given a task id.
//
// Steps are expected to honor ctx cancellation and to return
// models.ErrTaskCancelled (possibly wrapped) when they stop early because the
// task's cancel latch was set.
type Step interface {
	Name() string
	Execute(ctx context.Context, pctx *Context, params map[string]any, taskID string) error
}

// StepRequest is one entry of a pipeline submission.
type StepRequest struct {
	StepName string         `json:"step_name" example:"download" doc:"Registered step name"`
	Params   map[string]any `json:"params" doc:"Step specific parameters"`
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Step{}
)

// RegisterStep binds a step instance to its name. Later registrations under the
// same name replace earlier ones.
func RegisterStep(step Step) {
	registryMu.Lock()
	registry[step.Name()] = step
	registryMu.Unlock()
}

// GetStep resolves a step by name.
func GetStep(name string) (Step, error) {
	registryMu.RLock()
	step, exists := registry[name]
	registryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%q: %w", name, ErrStepNotFound)
	}

	return step, nil
}

// StepNames lists all registered steps.
func StepNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	return names
}

// ClearSteps empties the registry. For tests.
func ClearSteps() {
	registryMu.Lock()
	registry = map[string]Step{}
	registryMu.Unlock()
}
