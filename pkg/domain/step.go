package domain

import (
	"context"
	"fmt"
	"strings"
)

// StepName identifies a step in the pipeline graph
type StepName string

// String returns the step name as a plain string
func (n StepName) String() string {
	return string(n)
}

// ParseStepName trims and validates a step name
func ParseStepName(s string) (StepName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("step name is required")
	}
	return StepName(s), nil
}

// Action is the unit of work a step performs. A false result or a non-nil
// error both mean the attempt failed.
type Action func(ctx context.Context) (bool, error)

// StepDefinition describes a step. It is immutable once registered.
type StepDefinition struct {
	Name         StepName
	Description  string
	Dependencies []StepName
	Retryable    bool
	MaxRetries   int
	Action       Action
}

// Clone returns a copy that does not share the dependency slice
func (d StepDefinition) Clone() StepDefinition {
	out := d
	if d.Dependencies != nil {
		out.Dependencies = make([]StepName, len(d.Dependencies))
		copy(out.Dependencies, d.Dependencies)
	}
	return out
}

// RetryBudget returns how many retries a failing step may consume
func (d StepDefinition) RetryBudget() int {
	if !d.Retryable || d.MaxRetries < 0 {
		return 0
	}
	return d.MaxRetries
}
