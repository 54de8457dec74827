package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/internal/application/workers"
	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// Settings tunes how a pipeline executes its steps
type Settings struct {
	// Workers is the number of steps that may run at once. One means strictly sequential.
	Workers int
	// RetryDelay is the pause between attempts of a retryable step
	RetryDelay time.Duration
	// HealthCheckInterval controls how often the worker pool reports its status
	HealthCheckInterval time.Duration
}

// Pipeline is the entry point for registering and running steps.
// A pipeline performs a single run.
type Pipeline struct {
	registry *Registry
	store    *StateStore
	eventBus ports.EventBus
	storage  ports.StateStorage
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	settings Settings
	runID    string

	cancelled atomic.Bool

	mu          sync.RWMutex
	status      domain.RunStatus
	executed    bool
	runErr      string
	order       []domain.StepName
	startedAt   *time.Time
	completedAt *time.Time
	runDone     chan struct{}
}

// NewPipeline creates an idle pipeline. eventBus, storage and metrics may be nil.
func NewPipeline(
	eventBus ports.EventBus,
	storage ports.StateStorage,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	settings Settings,
) *Pipeline {
	if settings.Workers < 1 {
		settings.Workers = 1
	}

	p := &Pipeline{
		registry: NewRegistry(),
		store:    NewStateStore(),
		eventBus: eventBus,
		storage:  storage,
		metrics:  metrics,
		settings: settings,
		runID:    uuid.New().String(),
		status:   domain.RunStatusIdle,
	}
	p.logger = logger.With(zap.String("run_id", p.runID))
	p.store.SetObserver(p.onTransition)

	return p
}

// RunID returns the identifier attached to this pipeline's events and snapshots
func (p *Pipeline) RunID() string {
	return p.runID
}

// RegisterStep adds a step. Dependencies may refer to steps registered later.
func (p *Pipeline) RegisterStep(def domain.StepDefinition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.status == domain.RunStatusRunning:
		return &PipelineBusyError{RunID: p.runID, Op: "register step"}
	case p.executed:
		return ErrAlreadyExecuted
	}

	if err := p.registry.Register(def); err != nil {
		return err
	}
	def, _ = p.registry.Definition(domain.StepName(strings.TrimSpace(string(def.Name))))
	if err := p.store.Add(def.Name, def.Description); err != nil {
		return err
	}

	p.logger.Debug("step registered",
		zap.String("step", def.Name.String()),
		zap.Int("dependencies", len(def.Dependencies)),
		zap.Bool("retryable", def.Retryable),
		zap.Int("max_retries", def.MaxRetries))
	return nil
}

// ExecuteAll validates the step graph and runs every step that can run.
// It returns true only when every step completed. Step failures are reported
// through state, not through the error, which is reserved for configuration
// problems, overlapping calls and internal faults.
func (p *Pipeline) ExecuteAll(ctx context.Context) (bool, error) {
	p.mu.Lock()
	switch {
	case p.status == domain.RunStatusRunning:
		p.mu.Unlock()
		return false, &PipelineBusyError{RunID: p.runID, Op: "execute"}
	case p.executed:
		p.mu.Unlock()
		return false, ErrAlreadyExecuted
	}

	now := time.Now()
	if err := p.registry.Validate(); err != nil {
		p.status = domain.RunStatusAborted
		p.runErr = err.Error()
		p.startedAt = nil
		p.completedAt = &now
		p.mu.Unlock()

		p.logger.Error("step graph validation failed", zap.Error(err))
		p.finish(ctx, domain.RunStatusAborted, false, 0)
		return false, err
	}

	p.status = domain.RunStatusRunning
	p.executed = true
	p.runErr = ""
	p.startedAt = &now
	p.completedAt = nil
	p.runDone = make(chan struct{})
	runDone := p.runDone
	p.mu.Unlock()
	defer close(runDone)

	p.logger.Info("pipeline run started",
		zap.Int("steps", p.registry.Len()),
		zap.Int("workers", p.settings.Workers))
	if p.metrics != nil {
		p.metrics.SetActiveRuns(1)
	}
	p.publish(ctx, domain.TopicPipelineEvents, domain.Event{
		Type: domain.EventTypePipelineStarted,
		Data: map[string]interface{}{
			"steps":   p.registry.Len(),
			"workers": p.settings.Workers,
		},
	})
	p.persist(ctx)

	pool := workers.NewPool(p.settings.Workers, p.metrics, p.logger, p.settings.HealthCheckInterval)
	retry := NewRetryController(p.store, p.logger, p.settings.RetryDelay)
	scheduler := NewScheduler(p.registry, p.store, retry, pool, p.logger,
		p.cancelled.Load,
		func() { p.persist(ctx) },
	)

	result, err := scheduler.Run(ctx)

	status := domain.RunStatusCompleted
	success := false
	var duration time.Duration
	if result != nil {
		duration = result.Duration
		success = result.Success
	}

	completed := time.Now()
	p.mu.Lock()
	switch {
	case err != nil:
		status = domain.RunStatusAborted
		p.runErr = err.Error()
	case result.Cancelled:
		status = domain.RunStatusCancelled
	}
	if result != nil {
		p.order = result.Order
	}
	p.status = status
	p.completedAt = &completed
	p.mu.Unlock()

	p.finish(ctx, status, success, duration)

	if err != nil {
		p.logger.Error("pipeline run aborted", zap.Error(err))
		return false, fmt.Errorf("pipeline run %s aborted: %w", p.runID, err)
	}
	return success, nil
}

// finish records the end of a run in logs, metrics, events and storage
func (p *Pipeline) finish(ctx context.Context, status domain.RunStatus, success bool, duration time.Duration) {
	summary := p.store.Summary()

	p.logger.Info("pipeline run finished",
		zap.String("status", string(status)),
		zap.Bool("success", success),
		zap.Duration("duration", duration),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("cancelled", summary.Cancelled))

	if p.metrics != nil {
		p.metrics.SetActiveRuns(0)
		p.metrics.RecordRunFinished(string(status), success, duration)
	}

	data := map[string]interface{}{
		"success":  success,
		"summary":  summary,
		"duration": duration.String(),
	}
	if runErr := p.Err(); runErr != "" {
		data["error"] = runErr
	}
	p.publish(ctx, domain.TopicPipelineEvents, domain.Event{
		Type: domain.RunEventType(status),
		Data: data,
	})
	p.persist(ctx)
}

// Cancel asks the run to stop. Steps already running finish; steps not yet
// started end cancelled. Safe to call from any goroutine, any number of times,
// including before ExecuteAll.
func (p *Pipeline) Cancel() {
	if p.cancelled.CompareAndSwap(false, true) {
		p.logger.Info("pipeline cancellation requested",
			zap.String("status", string(p.Status())))
	}
}

// CancelRequested reports whether Cancel has been called
func (p *Pipeline) CancelRequested() bool {
	return p.cancelled.Load()
}

// Status returns the run status
func (p *Pipeline) Status() domain.RunStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Err returns the message of the error that aborted the run, if any
func (p *Pipeline) Err() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.runErr
}

// GetState returns a copy of every step's state keyed by name
func (p *Pipeline) GetState() map[domain.StepName]domain.StepState {
	return p.store.GetAll()
}

// GetStep returns a copy of one step's state
func (p *Pipeline) GetStep(name domain.StepName) (domain.StepState, error) {
	st, ok := p.store.Get(name)
	if !ok {
		return domain.StepState{}, fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
	return st, nil
}

// Steps returns every step's state in declaration order
func (p *Pipeline) Steps() []domain.StepState {
	return p.store.Steps()
}

// GetSummary returns status counts derived from current state
func (p *Pipeline) GetSummary() domain.Summary {
	return p.store.Summary()
}

// ExecutionOrder returns the order in which steps were started by the last run
func (p *Pipeline) ExecutionOrder() []domain.StepName {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.StepName, len(p.order))
	copy(out, p.order)
	return out
}

// Plan validates the graph and returns a dependency-respecting order without running anything
func (p *Pipeline) Plan() ([]domain.StepName, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.registry.Validate(); err != nil {
		return nil, err
	}
	return p.registry.TopologicalOrder()
}

// Snapshot returns a point-in-time view of the run
func (p *Pipeline) Snapshot() *domain.RunSnapshot {
	steps := p.store.Steps()
	var summary domain.Summary
	for _, st := range steps {
		summary.Add(st.Status)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := &domain.RunSnapshot{
		RunID:     p.runID,
		Status:    p.status,
		Success:   p.status == domain.RunStatusCompleted && summary.Success(),
		Error:     p.runErr,
		Steps:     steps,
		Summary:   summary,
		UpdatedAt: time.Now(),
	}
	if p.startedAt != nil {
		t := *p.startedAt
		snap.StartedAt = &t
	}
	if p.completedAt != nil {
		t := *p.completedAt
		snap.CompletedAt = &t
	}
	return snap
}

// Wait blocks until an in-progress run returns or ctx is done
func (p *Pipeline) Wait(ctx context.Context) error {
	p.mu.RLock()
	runDone := p.runDone
	running := p.status == domain.RunStatusRunning
	p.mu.RUnlock()

	if !running || runDone == nil {
		return nil
	}

	select {
	case <-runDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for run %s: %w", p.runID, ctx.Err())
	}
}

// Shutdown cancels the run and waits for in-flight steps to finish
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down pipeline")
	p.Cancel()
	if err := p.Wait(ctx); err != nil {
		return err
	}
	p.logger.Info("pipeline shut down complete")
	return nil
}

// onTransition turns store transitions into events and metrics
func (p *Pipeline) onTransition(prev, next domain.StepState) {
	step := next.Name.String()

	if p.metrics != nil {
		p.metrics.RecordStepTransition(step, string(next.Status))
		if prev.Status == domain.StepStatusRunning && next.Status == domain.StepStatusRunning {
			p.metrics.RecordStepRetry(step)
		}
		if prev.Status == domain.StepStatusRunning && next.Status.IsTerminal() {
			p.metrics.ObserveStepDuration(step, string(next.Status), next.Duration())
		}
	}

	data := map[string]interface{}{
		"from":        string(prev.Status),
		"status":      string(next.Status),
		"retry_count": next.RetryCount,
		"attempts":    next.Attempts,
	}
	if next.ErrorMessage != "" {
		data["error"] = next.ErrorMessage
	}
	if next.Status.IsTerminal() && next.EndTime != nil {
		data["duration"] = next.Duration().String()
	}

	p.publish(context.Background(), domain.TopicStepEvents, domain.Event{
		Type: domain.StepEventType(prev.Status, next.Status),
		Step: next.Name,
		Data: data,
	})
}

// publish stamps and sends an event. Delivery failures are logged, never fatal.
func (p *Pipeline) publish(ctx context.Context, topic string, event domain.Event) {
	if p.eventBus == nil {
		return
	}

	event.ID = uuid.New().String()
	event.RunID = p.runID
	event.Timestamp = time.Now()

	if err := p.eventBus.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// persist mirrors the current snapshot to state storage
func (p *Pipeline) persist(ctx context.Context) {
	if p.storage == nil {
		return
	}

	if err := p.storage.SaveRun(context.WithoutCancel(ctx), p.Snapshot()); err != nil {
		p.logger.Error("failed to save run snapshot", zap.Error(err))
	}
}
