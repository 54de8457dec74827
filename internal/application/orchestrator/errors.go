package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/assetforge/pkg/domain"
)

// Error classes. Typed errors below match these through errors.Is.
var (
	// ErrConfiguration is the class of errors detected before any step runs
	ErrConfiguration = errors.New("pipeline configuration error")
	// ErrPipelineBusy indicates a run is already in progress
	ErrPipelineBusy = errors.New("pipeline is busy")
	// ErrAlreadyExecuted indicates the pipeline already finished its run
	ErrAlreadyExecuted = errors.New("pipeline already executed")
	// ErrInvalidTransition is an internal fault: a lifecycle edge that must never be taken
	ErrInvalidTransition = errors.New("invalid step state transition")
	// ErrUnknownStep indicates a lookup for a step that was never registered
	ErrUnknownStep = errors.New("unknown step")
)

// DuplicateStepError is returned when a step name is registered twice
type DuplicateStepError struct {
	Step domain.StepName
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step: %q is already registered", e.Step)
}

func (e *DuplicateStepError) Is(target error) bool { return target == ErrConfiguration }

// UnknownDependencyError is returned when a step depends on an unregistered step
type UnknownDependencyError struct {
	Step       domain.StepName
	Dependency domain.StepName
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unknown dependency: step %q depends on unregistered step %q", e.Step, e.Dependency)
}

func (e *UnknownDependencyError) Is(target error) bool { return target == ErrConfiguration }

// CyclicDependencyError is returned when the dependency graph has a cycle.
// Cycle is the "depends on" chain, starting and ending with Step.
type CyclicDependencyError struct {
	Step  domain.StepName
	Cycle []domain.StepName
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("cyclic dependency involving step %q", e.Step)
	}
	parts := make([]string, len(e.Cycle))
	for i, name := range e.Cycle {
		parts[i] = string(name)
	}
	return fmt.Sprintf("cyclic dependency involving step %q: %s", e.Step, strings.Join(parts, " -> "))
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrConfiguration }

// InvalidStepError is returned for a malformed step definition
type InvalidStepError struct {
	Step   domain.StepName
	Reason string
}

func (e *InvalidStepError) Error() string {
	if e.Step == "" {
		return "invalid step: " + e.Reason
	}
	return fmt.Sprintf("invalid step %q: %s", e.Step, e.Reason)
}

func (e *InvalidStepError) Is(target error) bool { return target == ErrConfiguration }

// PipelineBusyError is returned when an operation overlaps a run in progress
type PipelineBusyError struct {
	RunID string
	Op    string
}

func (e *PipelineBusyError) Error() string {
	return fmt.Sprintf("%s: run %s is in progress", e.Op, e.RunID)
}

func (e *PipelineBusyError) Is(target error) bool { return target == ErrPipelineBusy }

// transitionError builds an internal fault for a rejected lifecycle edge
func transitionError(step domain.StepName, from, to domain.StepStatus) error {
	return fmt.Errorf("%w: step %q %s -> %s", ErrInvalidTransition, step, from, to)
}
