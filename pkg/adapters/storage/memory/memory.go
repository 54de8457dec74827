package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// InMemoryStateStorage implements StateStorage using an in-memory map
type InMemoryStateStorage struct {
	runs map[string]*domain.RunSnapshot
	mu   sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage() *InMemoryStateStorage {
	return &InMemoryStateStorage{
		runs: make(map[string]*domain.RunSnapshot),
	}
}

// SaveRun stores a copy of the snapshot, replacing any previous one for the run
func (s *InMemoryStateStorage) SaveRun(ctx context.Context, snapshot *domain.RunSnapshot) error {
	if snapshot == nil || snapshot.RunID == "" {
		return fmt.Errorf("snapshot must have a run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[snapshot.RunID] = snapshot.Clone()
	return nil
}

// GetRun retrieves the latest snapshot of a run
func (s *InMemoryStateStorage) GetRun(ctx context.Context, runID string) (*domain.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRunNotFound, runID)
	}
	return snap.Clone(), nil
}

// ListRuns returns every stored snapshot, most recently updated first
func (s *InMemoryStateStorage) ListRuns(ctx context.Context) ([]*domain.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.RunSnapshot, 0, len(s.runs))
	for _, snap := range s.runs {
		runs = append(runs, snap.Clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].UpdatedAt.After(runs[j].UpdatedAt)
	})
	return runs, nil
}

// DeleteRun removes a run's snapshot
func (s *InMemoryStateStorage) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}
