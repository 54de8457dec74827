package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	runID    func() string
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. runID names the run whose
// events are streamed.
func NewHandler(eventBus ports.EventBus, runID func() string, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		runID:    runID,
		logger:   logger,
	}
}

// HandleRunStream streams pipeline and step events of the current run as JSON
// text messages until the client disconnects
func (h *Handler) HandleRunStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	runID := h.runID()
	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything we act on; reading detects disconnects
	// and processes control frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	eventChan := make(chan domain.Event, 64)
	h.subscribeToEvents(ctx, runID, eventChan)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// subscribeToEvents forwards events of one run to ch, dropping them when the
// client falls behind
func (h *Handler) subscribeToEvents(ctx context.Context, runID string, ch chan<- domain.Event) {
	eventHandler := func(ctx context.Context, event domain.Event) error {
		if event.RunID != runID {
			return nil
		}

		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	for _, topic := range []string{domain.TopicPipelineEvents, domain.TopicStepEvents} {
		if err := h.eventBus.Subscribe(ctx, topic, eventHandler); err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}
