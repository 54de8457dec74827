package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type poolMetrics struct {
	mu      sync.Mutex
	reports int
	last    [3]int
}

func (m *poolMetrics) RecordStepTransition(string, string) {}
func (m *poolMetrics) RecordStepRetry(string) {}
func (m *poolMetrics) ObserveStepDuration(string, string, time.Duration) {}
func (m *poolMetrics) RecordRunFinished(string, bool, time.Duration) {}
func (m *poolMetrics) SetActiveRuns(int) {}
func (m *poolMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports++
	m.last = [3]int{idle, busy, stopped}
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := NewPool(3, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, pool.Start())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(Job{ID: "job", Run: func() {
			defer wg.Done()
			ran.Add(1)
		}}))
	}
	wg.Wait()

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int32(3), ran.Load())

	report := pool.Report()
	assert.Equal(t, 3, report.Stopped)
	assert.False(t, report.Healthy())
	for _, w := range report.Workers {
		assert.Equal(t, WorkerStatusStopped, w.Status)
		assert.Empty(t, w.Job)
	}
}

func TestPoolSizeFloor(t *testing.T) {
	pool := NewPool(0, nil, zaptest.NewLogger(t), 0)
	assert.Equal(t, 1, pool.Size())
}

func TestPoolRejectsSubmitWhenStopped(t *testing.T) {
	pool := NewPool(1, nil, zaptest.NewLogger(t), 0)
	assert.ErrorIs(t, pool.Submit(Job{ID: "early", Run: func() {}}), ErrPoolClosed)

	require.NoError(t, pool.Start())
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.ErrorIs(t, pool.Submit(Job{ID: "late", Run: func() {}}), ErrPoolClosed)
	assert.Error(t, pool.Start())
}

func TestPoolShutdownWaitsForRunningJobs(t *testing.T) {
	pool := NewPool(1, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, pool.Start())

	var finished atomic.Bool
	started := make(chan struct{})
	require.NoError(t, pool.Submit(Job{ID: "slow", Run: func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	}}))
	<-started

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestPoolShutdownTimesOut(t *testing.T) {
	pool := NewPool(1, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, pool.Start())

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, pool.Submit(Job{ID: "stuck", Run: func() {
		close(started)
		<-release
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)
}

func TestMonitorReportsWorkerStatus(t *testing.T) {
	metrics := &poolMetrics{}
	pool := NewPool(2, metrics, zaptest.NewLogger(t), 5*time.Millisecond)
	require.NoError(t, pool.Start())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(Job{ID: "busy", Run: func() {
		close(started)
		<-release
	}}))
	<-started

	require.Eventually(t, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return metrics.reports > 0 && metrics.last == [3]int{1, 1, 0}
	}, time.Second, 5*time.Millisecond)

	assert.True(t, pool.Report().Healthy())

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, [3]int{0, 0, 2}, metrics.last)
}

func TestReportNamesRunningSteps(t *testing.T) {
	pool := NewPool(3, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, pool.Start())

	release := make(chan struct{})
	var started sync.WaitGroup
	for _, id := range []string{"icons", "groups"} {
		started.Add(1)
		require.NoError(t, pool.Submit(Job{ID: id, Run: func() {
			started.Done()
			<-release
		}}))
	}
	started.Wait()
	time.Sleep(5 * time.Millisecond)

	report := pool.Report()
	assert.Equal(t, 2, report.Busy)
	assert.Equal(t, 1, report.Idle)
	assert.ElementsMatch(t, []string{"icons", "groups"}, report.Running())

	longest, ok := report.Longest()
	require.True(t, ok)
	assert.Contains(t, []string{"icons", "groups"}, longest.Job)
	assert.Positive(t, longest.Elapsed)

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Empty(t, pool.Report().Running())
}

func TestEmptyReportHasNoLongestJob(t *testing.T) {
	report := NewPool(2, nil, zaptest.NewLogger(t), 0).Report()
	assert.Empty(t, report.Workers)
	assert.False(t, report.Healthy())

	_, ok := report.Longest()
	assert.False(t, ok)
}
