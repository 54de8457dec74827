package domain

import "time"

// RunStatus represents the status of a pipeline run
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsFinished reports whether the run reached a final status
func (s RunStatus) IsFinished() bool {
	return s == RunStatusCompleted || s == RunStatusAborted || s == RunStatusCancelled
}

// RunSnapshot is a point-in-time view of a run, mirrored to state storage
type RunSnapshot struct {
	RunID       string      `json:"run_id"`
	Status      RunStatus   `json:"status"`
	Success     bool        `json:"success"`
	Error       string      `json:"error,omitempty"`
	Steps       []StepState `json:"steps"`
	Summary     Summary     `json:"summary"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of the snapshot
func (r *RunSnapshot) Clone() *RunSnapshot {
	if r == nil {
		return nil
	}
	out := *r
	out.Steps = make([]StepState, len(r.Steps))
	for i, st := range r.Steps {
		out.Steps[i] = st.Clone()
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
