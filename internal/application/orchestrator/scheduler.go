package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/assetforge/internal/application/workers"
	"github.com/aescanero/assetforge/pkg/domain"
)

// RunResult describes how a run ended
type RunResult struct {
	Success   bool
	Cancelled bool
	// Order lists steps in the order they were dispatched
	Order    []domain.StepName
	Duration time.Duration
}

// stepOutcome is reported by a worker when a step reaches a terminal status
type stepOutcome struct {
	name  domain.StepName
	state domain.StepState
	err   error
}

// Scheduler drives steps through the retry controller in dependency order
type Scheduler struct {
	registry *Registry
	store    *StateStore
	retry    *RetryController
	pool     *workers.Pool
	logger   *zap.Logger

	// cancelRequested is polled at every decision point
	cancelRequested func() bool
	// progress is called from the scheduling loop after each step outcome
	progress func()
}

// NewScheduler creates a scheduler over a validated registry
func NewScheduler(
	registry *Registry,
	store *StateStore,
	retry *RetryController,
	pool *workers.Pool,
	logger *zap.Logger,
	cancelRequested func() bool,
	progress func(),
) *Scheduler {
	if cancelRequested == nil {
		cancelRequested = func() bool { return false }
	}
	if progress == nil {
		progress = func() {}
	}
	return &Scheduler{
		registry:        registry,
		store:           store,
		retry:           retry,
		pool:            pool,
		logger:          logger,
		cancelRequested: cancelRequested,
		progress:        progress,
	}
}

// Run executes every step that can run. Ready steps are dispatched in
// declaration order, never more than the pool size at once. A failed step
// skips its transitive dependents. Once cancellation is observed no further
// step is dispatched, in-flight steps finish, and pending steps are cancelled.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	if err := s.pool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.pool.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("worker pool shutdown error", zap.Error(err))
		}
	}()

	done := make(chan stepOutcome, s.pool.Size())
	dispatched := make(map[domain.StepName]bool, s.registry.Len())
	result := &RunResult{}
	inFlight := 0
	var fault error

	for {
		if !result.Cancelled && (s.cancelRequested() || ctx.Err() != nil) {
			result.Cancelled = true
			s.logger.Info("cancellation observed, no further steps will start",
				zap.Int("in_flight", inFlight))
		}

		if !result.Cancelled && fault == nil {
			for _, name := range s.readySteps(dispatched) {
				if inFlight >= s.pool.Size() {
					break
				}
				if err := s.dispatch(ctx, name, done); err != nil {
					fault = err
					break
				}
				dispatched[name] = true
				result.Order = append(result.Order, name)
				inFlight++
			}
		}

		if inFlight == 0 {
			break
		}

		outcome := <-done
		inFlight--

		switch {
		case outcome.err != nil:
			s.logger.Error("internal fault while running step",
				zap.String("step", outcome.name.String()),
				zap.Error(outcome.err))
			if fault == nil {
				fault = outcome.err
			}
		case outcome.state.Status == domain.StepStatusFailed:
			s.skipDependents(outcome.name)
		}
		s.progress()
	}

	switch {
	case result.Cancelled:
		s.cancelPending("run cancelled before step started")
	case fault != nil:
		s.cancelPending("run aborted by internal fault")
	default:
		// A valid graph leaves nothing pending; anything left is a scheduling bug.
		if pending := s.store.Summary().Pending; pending > 0 {
			fault = fmt.Errorf("%w: %d steps left pending with nothing running", ErrInvalidTransition, pending)
			s.cancelPending("run ended with unreachable step")
		}
	}
	s.progress()

	result.Duration = time.Since(started)
	result.Success = fault == nil && s.store.Summary().Success()
	return result, fault
}

// dispatch hands one step to the pool
func (s *Scheduler) dispatch(ctx context.Context, name domain.StepName, done chan<- stepOutcome) error {
	def, ok := s.registry.Definition(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}

	s.logger.Debug("dispatching step", zap.String("step", name.String()))

	return s.pool.Submit(workers.Job{
		ID: name.String(),
		Run: func() {
			state, err := s.retry.Execute(ctx, def)
			done <- stepOutcome{name: name, state: state, err: err}
		},
	})
}

// readySteps returns pending, undispatched steps whose dependencies have all
// completed, in declaration order
func (s *Scheduler) readySteps(dispatched map[domain.StepName]bool) []domain.StepName {
	var ready []domain.StepName
	for _, name := range s.registry.Order() {
		if dispatched[name] || s.store.Status(name) != domain.StepStatusPending {
			continue
		}
		def, _ := s.registry.Definition(name)
		satisfied := true
		for _, dep := range def.Dependencies {
			if s.store.Status(dep) != domain.StepStatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, name)
		}
	}
	return ready
}

// skipDependents marks every pending transitive dependent of a failed step as
// skipped. Each skip names the nearest upstream step that failed or was skipped.
func (s *Scheduler) skipDependents(failed domain.StepName) {
	type blocked struct {
		name     domain.StepName
		upstream domain.StepName
	}

	visited := map[domain.StepName]bool{failed: true}
	var queue []blocked
	for _, dep := range s.registry.Dependents(failed) {
		queue = append(queue, blocked{name: dep, upstream: failed})
	}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next.name] {
			continue
		}
		visited[next.name] = true

		if s.store.Status(next.name) == domain.StepStatusPending {
			reason := fmt.Sprintf("upstream step %q failed", next.upstream)
			if _, err := s.store.Transition(next.name, domain.StepStatusSkipped, withError(reason)); err != nil {
				s.logger.Error("failed to skip dependent step",
					zap.String("step", next.name.String()),
					zap.Error(err))
				continue
			}
			s.logger.Warn("step skipped",
				zap.String("step", next.name.String()),
				zap.String("failed_upstream", next.upstream.String()))
		}
		for _, dep := range s.registry.Dependents(next.name) {
			queue = append(queue, blocked{name: dep, upstream: next.name})
		}
	}
}

// cancelPending moves every pending step to cancelled
func (s *Scheduler) cancelPending(reason string) {
	for _, name := range s.registry.Order() {
		if s.store.Status(name) != domain.StepStatusPending {
			continue
		}
		if _, err := s.store.Transition(name, domain.StepStatusCancelled, withError(reason)); err != nil {
			s.logger.Error("failed to cancel pending step",
				zap.String("step", name.String()),
				zap.Error(err))
		}
	}
}
