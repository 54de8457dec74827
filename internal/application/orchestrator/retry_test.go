package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aescanero/assetforge/pkg/domain"
)

func newRetryFixture(t *testing.T, delay time.Duration, def domain.StepDefinition) (*RetryController, *StateStore) {
	t.Helper()
	store := NewStateStore()
	require.NoError(t, store.Add(def.Name, def.Description))
	return NewRetryController(store, zaptest.NewLogger(t), delay), store
}

func TestRetryControllerRetriesUntilSuccess(t *testing.T) {
	action, calls := failTimes(2)
	def := domain.StepDefinition{Name: "database", Retryable: true, MaxRetries: 3, Action: action}
	c, _ := newRetryFixture(t, 0, def)

	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusCompleted, st.Status)
	assert.Equal(t, 2, st.RetryCount)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, 3, *calls)
	assert.Empty(t, st.ErrorMessage)
}

func TestRetryControllerExhaustsBudget(t *testing.T) {
	action, calls := failTimes(10)
	def := domain.StepDefinition{Name: "icons", Retryable: true, MaxRetries: 2, Action: action}
	c, _ := newRetryFixture(t, 0, def)

	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusFailed, st.Status)
	assert.Equal(t, 2, st.RetryCount)
	assert.Equal(t, 3, *calls)
	assert.Equal(t, "transient failure", st.ErrorMessage)
	assert.NotNil(t, st.EndTime)
}

func TestRetryControllerNonRetryableRunsOnce(t *testing.T) {
	action, calls := failTimes(1)
	def := domain.StepDefinition{Name: "images", Retryable: false, MaxRetries: 5, Action: action}
	c, _ := newRetryFixture(t, 0, def)

	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusFailed, st.Status)
	assert.Zero(t, st.RetryCount)
	assert.Equal(t, 1, *calls)
}

func TestRetryControllerFalseResultIsFailure(t *testing.T) {
	def := domain.StepDefinition{
		Name:   "groups",
		Action: func(context.Context) (bool, error) { return false, nil },
	}
	c, _ := newRetryFixture(t, 0, def)

	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusFailed, st.Status)
	assert.Equal(t, failureReported, st.ErrorMessage)
}

func TestRetryControllerRecoversPanic(t *testing.T) {
	def := domain.StepDefinition{
		Name:   "atlas",
		Action: func(context.Context) (bool, error) { panic("out of tiles") },
	}
	c, _ := newRetryFixture(t, 0, def)

	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusFailed, st.Status)
	assert.Contains(t, st.ErrorMessage, "step action panicked")
	assert.Contains(t, st.ErrorMessage, "out of tiles")
}

func TestRetryControllerPanicConsumesRetries(t *testing.T) {
	calls := 0
	def := domain.StepDefinition{
		Name:       "whites",
		Retryable:  true,
		MaxRetries: 1,
		Action: func(context.Context) (bool, error) {
			calls++
			if calls == 1 {
				panic("flaky")
			}
			return true, nil
		},
	}
	c, _ := newRetryFixture(t, 0, def)

	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusCompleted, st.Status)
	assert.Equal(t, 1, st.RetryCount)
}

func TestRetryControllerAbandonsWaitOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	def := domain.StepDefinition{
		Name:       "publish",
		Retryable:  true,
		MaxRetries: 5,
		Action: func(context.Context) (bool, error) {
			calls++
			cancel()
			return false, nil
		},
	}
	c, _ := newRetryFixture(t, time.Hour, def)

	st, err := c.Execute(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusFailed, st.Status)
	assert.Equal(t, 1, calls)
	assert.Zero(t, st.RetryCount)
	assert.Contains(t, st.ErrorMessage, "retry abandoned")
	assert.Contains(t, st.ErrorMessage, failureReported)
}

func TestRetryControllerWaitsBetweenAttempts(t *testing.T) {
	action, _ := failTimes(1)
	def := domain.StepDefinition{Name: "database", Retryable: true, MaxRetries: 1, Action: action}
	c, _ := newRetryFixture(t, 20*time.Millisecond, def)

	started := time.Now()
	st, err := c.Execute(context.Background(), def)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusCompleted, st.Status)
	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
}

func TestRetryControllerRejectsStepNotPending(t *testing.T) {
	def := step("a")
	c, store := newRetryFixture(t, 0, def)
	_, err := store.Transition("a", domain.StepStatusSkipped, nil)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), def)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
