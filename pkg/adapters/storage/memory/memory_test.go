package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

func TestSaveAndGetRun(t *testing.T) {
	s := NewInMemoryStateStorage()
	ctx := context.Background()

	snap := &domain.RunSnapshot{
		RunID:  "run-1",
		Status: domain.RunStatusRunning,
		Steps:  []domain.StepState{{Name: "extract", Status: domain.StepStatusRunning}},
	}
	require.NoError(t, s.SaveRun(ctx, snap))

	snap.Steps[0].Status = domain.StepStatusFailed

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusRunning, got.Steps[0].Status)

	got.Status = domain.RunStatusAborted
	again, _ := s.GetRun(ctx, "run-1")
	assert.Equal(t, domain.RunStatusRunning, again.Status)
}

func TestGetRunNotFound(t *testing.T) {
	_, err := NewInMemoryStateStorage().GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestSaveRunRequiresID(t *testing.T) {
	s := NewInMemoryStateStorage()
	assert.Error(t, s.SaveRun(context.Background(), nil))
	assert.Error(t, s.SaveRun(context.Background(), &domain.RunSnapshot{}))
}

func TestListRunsNewestFirst(t *testing.T) {
	s := NewInMemoryStateStorage()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.SaveRun(ctx, &domain.RunSnapshot{RunID: "old", UpdatedAt: base}))
	require.NoError(t, s.SaveRun(ctx, &domain.RunSnapshot{RunID: "new", UpdatedAt: base.Add(time.Minute)}))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "old", runs[1].RunID)

	require.NoError(t, s.DeleteRun(ctx, "new"))
	runs, _ = s.ListRuns(ctx)
	assert.Len(t, runs, 1)
}
