package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// defaultBuffer is the number of undelivered events a subscriber may lag behind
const defaultBuffer = 256

// subscription delivers events to one handler, in publish order
type subscription struct {
	id      uint64
	handler ports.EventHandler
	queue   chan domain.Event
	ctx     context.Context
	done    chan struct{}
}

// InMemoryEventBus implements EventBus with in-process fan-out
type InMemoryEventBus struct {
	subscribers map[string][]*subscription
	buffer      int
	nextID      uint64
	closed      bool
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]*subscription),
		buffer:      defaultBuffer,
	}
}

// Publish queues an event for every subscriber of a topic. It never blocks;
// a subscriber whose queue is full misses the event and an error is returned.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return fmt.Errorf("event bus is closed")
	}

	dropped := 0
	for _, sub := range e.subscribers[topic] {
		select {
		case sub.queue <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("event %s dropped for %d slow subscribers on %s", event.ID, dropped, topic)
	}
	return nil
}

// Subscribe registers handler for topic. The subscription ends when ctx is done.
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("event bus is closed")
	}

	e.nextID++
	sub := &subscription{
		id:      e.nextID,
		handler: handler,
		queue:   make(chan domain.Event, e.buffer),
		ctx:     ctx,
		done:    make(chan struct{}),
	}
	e.subscribers[topic] = append(e.subscribers[topic], sub)

	e.wg.Add(2)
	go e.deliver(sub)
	go func() {
		defer e.wg.Done()
		select {
		case <-ctx.Done():
			e.unsubscribe(topic, sub.id)
		case <-sub.done:
		}
	}()

	return nil
}

// Close stops every subscription and waits for in-progress deliveries
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for topic, subs := range e.subscribers {
		for _, sub := range subs {
			close(sub.queue)
		}
		delete(e.subscribers, topic)
	}
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

// deliver runs one subscriber's handler for each queued event. Handler
// errors are the subscriber's concern and do not stop delivery.
func (e *InMemoryEventBus) deliver(sub *subscription) {
	defer e.wg.Done()
	defer close(sub.done)

	for event := range sub.queue {
		_ = sub.handler(sub.ctx, event)
	}
}

// unsubscribe removes a subscription from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			close(sub.queue)
			e.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}
