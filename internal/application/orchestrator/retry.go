package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/pkg/domain"
)

// failureReported is recorded when an action returns false without an error
const failureReported = "step action reported failure"

// RetryController runs a step's action with bounded retries and records the
// outcome in the state store.
type RetryController struct {
	store  *StateStore
	logger *zap.Logger
	delay  time.Duration
}

// NewRetryController creates a retry controller. delay is the pause between
// attempts; zero retries immediately.
func NewRetryController(store *StateStore, logger *zap.Logger, delay time.Duration) *RetryController {
	return &RetryController{
		store:  store,
		logger: logger,
		delay:  delay,
	}
}

// Execute drives a pending step to completed or failed. The returned error is
// non-nil only for internal faults; action failures are recorded in state.
func (c *RetryController) Execute(ctx context.Context, def domain.StepDefinition) (domain.StepState, error) {
	logger := c.logger.With(zap.String("step", def.Name.String()))

	state, err := c.store.Transition(def.Name, domain.StepStatusRunning, nil)
	if err != nil {
		return state, err
	}
	logger.Info("step started", zap.String("description", def.Description))

	for {
		failure := c.attempt(ctx, def)
		if failure == "" {
			state, err = c.store.Transition(def.Name, domain.StepStatusCompleted, nil)
			if err != nil {
				return state, err
			}
			logger.Info("step completed",
				zap.Int("retry_count", state.RetryCount),
				zap.Duration("duration", state.Duration()))
			return state, nil
		}

		if budget := def.RetryBudget(); state.RetryCount < budget {
			logger.Warn("step attempt failed, retrying",
				zap.Int("attempt", state.Attempts),
				zap.Int("retry_count", state.RetryCount),
				zap.Int("max_retries", budget),
				zap.String("error", failure))

			if err := c.wait(ctx); err != nil {
				failure = fmt.Sprintf("%s (retry abandoned: %v)", failure, err)
				return c.fail(logger, def, failure)
			}

			state, err = c.store.Transition(def.Name, domain.StepStatusRunning, withError(failure))
			if err != nil {
				return state, err
			}
			continue
		}

		return c.fail(logger, def, failure)
	}
}

// attempt invokes the action once and returns the failure reason, or "" on success.
// Panics are captured and reported like errors.
func (c *RetryController) attempt(ctx context.Context, def domain.StepDefinition) string {
	var (
		ok  bool
		err error
	)

	var catcher panics.Catcher
	catcher.Try(func() {
		ok, err = def.Action(ctx)
	})
	if r := catcher.Recovered(); r != nil {
		return fmt.Sprintf("step action panicked: %v", r.Value)
	}

	switch {
	case err != nil:
		return err.Error()
	case !ok:
		return failureReported
	default:
		return ""
	}
}

func (c *RetryController) fail(logger *zap.Logger, def domain.StepDefinition, failure string) (domain.StepState, error) {
	state, err := c.store.Transition(def.Name, domain.StepStatusFailed, withError(failure))
	if err != nil {
		return state, err
	}
	logger.Error("step failed",
		zap.Int("retry_count", state.RetryCount),
		zap.Bool("retryable", def.Retryable),
		zap.Duration("duration", state.Duration()),
		zap.String("error", failure))
	return state, nil
}

// wait pauses between attempts; it is the only point where the run context
// can interrupt a step.
func (c *RetryController) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}

	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withError(msg string) func(*domain.StepState) {
	return func(st *domain.StepState) {
		st.ErrorMessage = msg
	}
}
