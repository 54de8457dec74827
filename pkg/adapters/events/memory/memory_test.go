package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/assetforge/pkg/domain"
)

type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) handle(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.ID
	}
	return out
}

func TestPublishDeliversInOrderPerTopic(t *testing.T) {
	bus := NewInMemoryEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	var steps, runs collector
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicStepEvents, steps.handle))
	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicPipelineEvents, runs.handle))

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, bus.Publish(context.Background(), domain.TopicStepEvents, domain.Event{ID: id}))
	}
	require.NoError(t, bus.Publish(context.Background(), domain.TopicPipelineEvents, domain.Event{ID: "run"}))

	require.Eventually(t, func() bool { return len(steps.ids()) == 3 && len(runs.ids()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2", "3"}, steps.ids())
	assert.Equal(t, []string{"run"}, runs.ids())
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	t.Cleanup(func() { _ = bus.Close() })
	assert.NoError(t, bus.Publish(context.Background(), "nobody", domain.Event{ID: "x"}))
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := NewInMemoryEventBus()
	bus.buffer = 1

	release := make(chan struct{})
	blocked := make(chan struct{})
	var once sync.Once
	require.NoError(t, bus.Subscribe(context.Background(), "t", func(context.Context, domain.Event) error {
		once.Do(func() { close(blocked) })
		<-release
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), "t", domain.Event{ID: "1"}))
	<-blocked
	require.NoError(t, bus.Publish(context.Background(), "t", domain.Event{ID: "2"}))
	assert.Error(t, bus.Publish(context.Background(), "t", domain.Event{ID: "3"}))

	close(release)
	require.NoError(t, bus.Close())
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewInMemoryEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	var c collector
	require.NoError(t, bus.Subscribe(ctx, "t", c.handle))
	cancel()

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["t"]) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "t", domain.Event{ID: "late"}))
	assert.Empty(t, c.ids())
}

func TestClosedBusRejectsUse(t *testing.T) {
	bus := NewInMemoryEventBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.Error(t, bus.Publish(context.Background(), "t", domain.Event{}))
	assert.Error(t, bus.Subscribe(context.Background(), "t", func(context.Context, domain.Event) error { return nil }))
}
