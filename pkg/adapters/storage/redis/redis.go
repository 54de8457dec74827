package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

const keyPrefix = "assetforge:run:"

// StateStorage implements StateStorage using Redis
type StateStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage. A zero ttl keeps snapshots forever.
func NewStateStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateStorage {
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun stores the snapshot as JSON and refreshes its TTL
func (s *StateStorage) SaveRun(ctx context.Context, snapshot *domain.RunSnapshot) error {
	if snapshot == nil || snapshot.RunID == "" {
		return fmt.Errorf("snapshot must have a run id")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal run snapshot: %w", err)
	}

	if err := s.client.Set(ctx, getRunKey(snapshot.RunID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run snapshot: %w", err)
	}

	s.logger.Debug("run snapshot saved",
		zap.String("run_id", snapshot.RunID),
		zap.String("status", string(snapshot.Status)))

	return nil
}

// GetRun retrieves the latest snapshot of a run
func (s *StateStorage) GetRun(ctx context.Context, runID string) (*domain.RunSnapshot, error) {
	data, err := s.client.Get(ctx, getRunKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ports.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run snapshot: %w", err)
	}

	var snap domain.RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run snapshot: %w", err)
	}

	return &snap, nil
}

// ListRuns returns every stored snapshot, most recently updated first.
// Keys that expire or fail to decode during the scan are skipped.
func (s *StateStorage) ListRuns(ctx context.Context) ([]*domain.RunSnapshot, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	runs := make([]*domain.RunSnapshot, 0, len(keys))
	for _, key := range keys {
		snap, err := s.GetRun(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			s.logger.Debug("skipping unreadable run snapshot",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		runs = append(runs, snap)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].UpdatedAt.After(runs[j].UpdatedAt)
	})
	return runs, nil
}

// DeleteRun removes a run's snapshot
func (s *StateStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, getRunKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run snapshot: %w", err)
	}

	s.logger.Debug("run snapshot deleted", zap.String("run_id", runID))
	return nil
}

// getRunKey returns the Redis key for a run snapshot
func getRunKey(runID string) string {
	return keyPrefix + runID
}
