package domain

import "time"

// EventType identifies the kind of event
type EventType string

const (
	EventTypePipelineStarted   EventType = "pipeline.started"
	EventTypePipelineCompleted EventType = "pipeline.completed"
	EventTypePipelineAborted   EventType = "pipeline.aborted"
	EventTypePipelineCancelled EventType = "pipeline.cancelled"

	EventTypeStepStarted   EventType = "step.started"
	EventTypeStepRetrying  EventType = "step.retrying"
	EventTypeStepCompleted EventType = "step.completed"
	EventTypeStepFailed    EventType = "step.failed"
	EventTypeStepSkipped   EventType = "step.skipped"
	EventTypeStepCancelled EventType = "step.cancelled"
)

// Event topics
const (
	TopicPipelineEvents = "pipeline.events"
	TopicStepEvents     = "step.events"
)

// Event is a pipeline or step lifecycle notification
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Step      StepName               `json:"step,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// StepEventType maps a step status transition to its event type. Retries
// are running→running transitions.
func StepEventType(from, to StepStatus) EventType {
	switch to {
	case StepStatusRunning:
		if from == StepStatusRunning {
			return EventTypeStepRetrying
		}
		return EventTypeStepStarted
	case StepStatusCompleted:
		return EventTypeStepCompleted
	case StepStatusFailed:
		return EventTypeStepFailed
	case StepStatusSkipped:
		return EventTypeStepSkipped
	case StepStatusCancelled:
		return EventTypeStepCancelled
	default:
		return ""
	}
}

// RunEventType maps a final run status to its event type
func RunEventType(status RunStatus) EventType {
	switch status {
	case RunStatusRunning:
		return EventTypePipelineStarted
	case RunStatusAborted:
		return EventTypePipelineAborted
	case RunStatusCancelled:
		return EventTypePipelineCancelled
	default:
		return EventTypePipelineCompleted
	}
}
