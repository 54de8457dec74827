package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/assetforge/pkg/domain"
)

// ErrRunNotFound is returned by StateStorage when no snapshot exists for a run
var ErrRunNotFound = errors.New("run not found")

// StateStorage mirrors run snapshots so that other processes can observe
// progress. It is never read back to resume a run.
type StateStorage interface {
	SaveRun(ctx context.Context, snapshot *domain.RunSnapshot) error
	GetRun(ctx context.Context, runID string) (*domain.RunSnapshot, error)
	ListRuns(ctx context.Context) ([]*domain.RunSnapshot, error)
	DeleteRun(ctx context.Context, runID string) error
}

// EventHandler processes a single event
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes and delivers pipeline events
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe registers handler for topic until ctx is done
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records orchestrator metrics
type MetricsCollector interface {
	RecordStepTransition(step string, status string)
	RecordStepRetry(step string)
	ObserveStepDuration(step string, status string, duration time.Duration)
	RecordRunFinished(status string, success bool, duration time.Duration)
	SetActiveRuns(count int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
