package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/assetforge/pkg/domain"
)

func newFixedStore(t *testing.T, names ...domain.StepName) (*StateStore, *time.Time) {
	t.Helper()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStateStore()
	s.now = func() time.Time { return clock }
	for _, name := range names {
		require.NoError(t, s.Add(name, "step "+string(name)))
	}
	return s, &clock
}

func TestStateStoreStartsPending(t *testing.T) {
	s, _ := newFixedStore(t, "a", "b")

	st, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusPending, st.Status)
	assert.Nil(t, st.StartTime)
	assert.Nil(t, st.EndTime)
	assert.Zero(t, st.RetryCount)

	assert.Equal(t, domain.Summary{Total: 2, Pending: 2}, s.Summary())
}

func TestStateStoreRejectsDuplicate(t *testing.T) {
	s, _ := newFixedStore(t, "a")
	var dup *DuplicateStepError
	assert.ErrorAs(t, s.Add("a", ""), &dup)
}

func TestStateStoreLifecycleTimestamps(t *testing.T) {
	s, clock := newFixedStore(t, "a")
	start := *clock

	st, err := s.Transition("a", domain.StepStatusRunning, nil)
	require.NoError(t, err)
	require.NotNil(t, st.StartTime)
	assert.Equal(t, start, *st.StartTime)
	assert.Nil(t, st.EndTime)
	assert.Equal(t, 1, st.Attempts)

	*clock = clock.Add(2 * time.Second)
	st, err = s.Transition("a", domain.StepStatusRunning, withError("first attempt failed"))
	require.NoError(t, err)
	assert.Equal(t, 1, st.RetryCount)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, start, *st.StartTime)
	assert.Equal(t, "first attempt failed", st.ErrorMessage)

	*clock = clock.Add(3 * time.Second)
	st, err = s.Transition("a", domain.StepStatusCompleted, nil)
	require.NoError(t, err)
	require.NotNil(t, st.EndTime)
	assert.Equal(t, 5*time.Second, st.Duration())
	assert.Empty(t, st.ErrorMessage)
	assert.Equal(t, 1, st.RetryCount)
}

func TestStateStoreSkipHasNoTimestamps(t *testing.T) {
	s, _ := newFixedStore(t, "a")

	st, err := s.Transition("a", domain.StepStatusSkipped, withError("upstream step \"x\" failed"))
	require.NoError(t, err)
	assert.Nil(t, st.StartTime)
	assert.Nil(t, st.EndTime)
	assert.Zero(t, st.Duration())
	assert.Equal(t, "upstream step \"x\" failed", st.ErrorMessage)
}

func TestStateStoreRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []domain.StepStatus
		to   domain.StepStatus
	}{
		{"pending to completed", nil, domain.StepStatusCompleted},
		{"pending to failed", nil, domain.StepStatusFailed},
		{"pending to pending", nil, domain.StepStatusPending},
		{"running to skipped", []domain.StepStatus{domain.StepStatusRunning}, domain.StepStatusSkipped},
		{"running to pending", []domain.StepStatus{domain.StepStatusRunning}, domain.StepStatusPending},
		{"completed to running", []domain.StepStatus{domain.StepStatusRunning, domain.StepStatusCompleted}, domain.StepStatusRunning},
		{"failed to running", []domain.StepStatus{domain.StepStatusRunning, domain.StepStatusFailed}, domain.StepStatusRunning},
		{"skipped to running", []domain.StepStatus{domain.StepStatusSkipped}, domain.StepStatusRunning},
		{"cancelled to running", []domain.StepStatus{domain.StepStatusCancelled}, domain.StepStatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newFixedStore(t, "a")
			for _, status := range tt.path {
				_, err := s.Transition("a", status, nil)
				require.NoError(t, err)
			}
			before, _ := s.Get("a")

			_, err := s.Transition("a", tt.to, nil)
			require.ErrorIs(t, err, ErrInvalidTransition)

			after, _ := s.Get("a")
			assert.Equal(t, before, after)
		})
	}
}

func TestStateStoreUnknownStep(t *testing.T) {
	s, _ := newFixedStore(t)
	_, err := s.Transition("ghost", domain.StepStatusRunning, nil)
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestStateStoreObserverSeesEveryTransition(t *testing.T) {
	s, _ := newFixedStore(t, "a")

	type edge struct{ from, to domain.StepStatus }
	var seen []edge
	s.SetObserver(func(prev, next domain.StepState) {
		seen = append(seen, edge{prev.Status, next.Status})
	})

	_, err := s.Transition("a", domain.StepStatusRunning, nil)
	require.NoError(t, err)
	_, err = s.Transition("a", domain.StepStatusRunning, nil)
	require.NoError(t, err)
	_, err = s.Transition("a", domain.StepStatusFailed, withError("boom"))
	require.NoError(t, err)
	_, err = s.Transition("a", domain.StepStatusRunning, nil)
	require.Error(t, err)

	assert.Equal(t, []edge{
		{domain.StepStatusPending, domain.StepStatusRunning},
		{domain.StepStatusRunning, domain.StepStatusRunning},
		{domain.StepStatusRunning, domain.StepStatusFailed},
	}, seen)
}

func TestStateStoreReturnsCopies(t *testing.T) {
	s, _ := newFixedStore(t, "a")
	_, err := s.Transition("a", domain.StepStatusRunning, nil)
	require.NoError(t, err)

	all := s.GetAll()
	st := all["a"]
	started := *st.StartTime
	st.Status = domain.StepStatusCompleted
	*st.StartTime = started.Add(time.Hour)

	again, _ := s.Get("a")
	assert.Equal(t, domain.StepStatusRunning, again.Status)
	require.NotNil(t, again.StartTime)
	assert.Equal(t, started, *again.StartTime)
}

func TestStateStoreStepsInDeclarationOrder(t *testing.T) {
	s, _ := newFixedStore(t, "c", "a", "b")

	var names []domain.StepName
	for _, st := range s.Steps() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []domain.StepName{"c", "a", "b"}, names)
}
