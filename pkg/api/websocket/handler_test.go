package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	eventsmem "github.com/aescanero/assetforge/pkg/adapters/events/memory"
	"github.com/aescanero/assetforge/pkg/domain"
)

func TestHandleRunStreamForwardsRunEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)

	bus := eventsmem.NewInMemoryEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	handler := NewHandler(bus, func() string { return "run-1" }, zaptest.NewLogger(t))
	router := gin.New()
	router.GET("/ws", handler.HandleRunStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// The subscription is registered after the upgrade completes, so keep
	// publishing until the client sees something.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bus.Publish(ctx, domain.TopicStepEvents, domain.Event{
					ID: "other", Type: domain.EventTypeStepStarted, RunID: "run-2", Step: "extract",
				})
				_ = bus.Publish(ctx, domain.TopicStepEvents, domain.Event{
					ID: "mine", Type: domain.EventTypeStepCompleted, RunID: "run-1", Step: "extract",
				})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event domain.Event
	require.NoError(t, conn.ReadJSON(&event))

	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "mine", event.ID)
	assert.Equal(t, domain.EventTypeStepCompleted, event.Type)
	assert.Equal(t, domain.StepName("extract"), event.Step)
}
