package domain

import "time"

// StepStatus represents the lifecycle status of a step within a run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusCancelled StepStatus = "cancelled"
)

// IsTerminal reports whether no further transition can occur from the status
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	default:
		return false
	}
}

// StepState is the mutable record of one step's progress
type StepState struct {
	Name         StepName   `json:"name"`
	Description  string     `json:"description,omitempty"`
	Status       StepStatus `json:"status"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	RetryCount   int        `json:"retry_count"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Clone returns a deep copy of the state
func (s StepState) Clone() StepState {
	out := s
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

// Duration returns the time spent running, or zero if the step never finished
func (s StepState) Duration() time.Duration {
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

// Summary aggregates step statuses for a run
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

// Add counts one step with the given status
func (s *Summary) Add(status StepStatus) {
	s.Total++
	switch status {
	case StepStatusPending:
		s.Pending++
	case StepStatusRunning:
		s.Running++
	case StepStatusCompleted:
		s.Completed++
	case StepStatusFailed:
		s.Failed++
	case StepStatusSkipped:
		s.Skipped++
	case StepStatusCancelled:
		s.Cancelled++
	}
}

// Success reports whether every registered step completed
func (s Summary) Success() bool {
	return s.Completed == s.Total
}
