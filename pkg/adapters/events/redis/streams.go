package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// streamMaxLen caps each stream; older entries are trimmed approximately
const streamMaxLen = 10000

// StreamsEventBus implements EventBus using Redis Streams
type StreamsEventBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// NewStreamsEventBus creates a new Redis Streams event bus
func NewStreamsEventBus(client *redis.Client, consumerGroup, consumerName string, logger *zap.Logger) (*StreamsEventBus, error) {
	if consumerGroup == "" || consumerName == "" {
		return nil, fmt.Errorf("consumer group and consumer name are required")
	}
	return &StreamsEventBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
	}, nil
}

// Publish appends an event to the topic's stream
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	streamKey := getStreamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe creates the consumer group if needed and starts reading the topic's
// stream in the background until ctx is done or the bus is closed
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)

	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	readCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels = append(e.cancels, cancel)
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.readStream(readCtx, streamKey, handler)
	}()

	return nil
}

// readStream reads events from a stream
func (e *StreamsEventBus) readStream(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    e.consumerGroup,
			Consumer: e.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

// processMessage processes a single message from the stream
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		return
	}

	var event domain.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := e.client.XAck(ctx, streamKey, e.consumerGroup, message.ID).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Close stops every reader and waits for it to return.
// The Redis client is owned and closed by the caller.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	cancels := e.cancels
	e.cancels = nil
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	e.wg.Wait()
	return nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("assetforge:events:%s", topic)
}
