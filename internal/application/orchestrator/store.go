package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/assetforge/pkg/domain"
)

// TransitionObserver is notified after every accepted transition
type TransitionObserver func(prev, next domain.StepState)

// StateStore is the single source of truth for step progress.
// Reads are safe while a run is in progress; writes are serialized.
type StateStore struct {
	mu       sync.RWMutex
	states   map[domain.StepName]*domain.StepState
	order    []domain.StepName
	observer TransitionObserver
	now      func() time.Time
}

// NewStateStore creates an empty store
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[domain.StepName]*domain.StepState),
		now:    time.Now,
	}
}

// SetObserver installs the transition observer. It must be called before a run starts.
func (s *StateStore) SetObserver(fn TransitionObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Add creates the pending state for a newly registered step
func (s *StateStore) Add(name domain.StepName, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[name]; exists {
		return &DuplicateStepError{Step: name}
	}
	s.states[name] = &domain.StepState{
		Name:        name,
		Description: description,
		Status:      domain.StepStatusPending,
	}
	s.order = append(s.order, name)
	return nil
}

// Get returns a copy of a step's state
func (s *StateStore) Get(name domain.StepName) (domain.StepState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[name]
	if !ok {
		return domain.StepState{}, false
	}
	return st.Clone(), true
}

// Status returns a step's current status
func (s *StateStore) Status(name domain.StepName) domain.StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[name]; ok {
		return st.Status
	}
	return ""
}

// GetAll returns a copy of every step's state keyed by name
func (s *StateStore) GetAll() map[domain.StepName]domain.StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.StepName]domain.StepState, len(s.states))
	for name, st := range s.states {
		out[name] = st.Clone()
	}
	return out
}

// Steps returns a copy of every step's state in declaration order
func (s *StateStore) Steps() []domain.StepState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StepState, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.states[name].Clone())
	}
	return out
}

// Summary derives status counts from the current states
func (s *StateStore) Summary() domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum domain.Summary
	for _, name := range s.order {
		sum.Add(s.states[name].Status)
	}
	return sum
}

// Transition moves a step to a new status. It is the only mutator.
// mutate, when non-nil, may adjust the error message before the state is published.
func (s *StateStore) Transition(name domain.StepName, to domain.StepStatus, mutate func(*domain.StepState)) (domain.StepState, error) {
	s.mu.Lock()

	st, ok := s.states[name]
	if !ok {
		s.mu.Unlock()
		return domain.StepState{}, fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
	from := st.Status
	if !allowedTransition(from, to) {
		s.mu.Unlock()
		return st.Clone(), transitionError(name, from, to)
	}

	prev := st.Clone()
	now := s.now()

	switch {
	case to == domain.StepStatusRunning && from == domain.StepStatusPending:
		st.StartTime = &now
		st.Attempts++
	case to == domain.StepStatusRunning && from == domain.StepStatusRunning:
		st.RetryCount++
		st.Attempts++
	case to.IsTerminal() && from == domain.StepStatusRunning:
		st.EndTime = &now
	}
	st.Status = to

	if mutate != nil {
		mutate(st)
	}
	if to == domain.StepStatusCompleted {
		st.ErrorMessage = ""
	}

	next := st.Clone()
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(prev, next)
	}
	return next, nil
}

// allowedTransition encodes the step lifecycle graph
func allowedTransition(from, to domain.StepStatus) bool {
	switch from {
	case domain.StepStatusPending:
		return to == domain.StepStatusRunning || to == domain.StepStatusSkipped || to == domain.StepStatusCancelled
	case domain.StepStatusRunning:
		return to == domain.StepStatusRunning || to == domain.StepStatusCompleted ||
			to == domain.StepStatusFailed || to == domain.StepStatusCancelled
	default:
		return false
	}
}
