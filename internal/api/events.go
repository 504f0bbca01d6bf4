package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camwatch/internal/api/models"
	"github.com/smazurov/camwatch/internal/events"
)

// sseBuffer is the per-connection backlog before events are dropped.
const sseBuffer = 64

// registerSSERoutes registers the live event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time source state changes, cycle summaries, reloads and published detection events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":            models.ConnectedEvent{},
		"source-state-changed": events.SourceStateChangedEvent{},
		"cycle-completed":      events.CycleCompletedEvent{},
		"detection":            events.DetectionEvent{},
		"sources-reloaded":     events.SourcesReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, sseBuffer)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SourceStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CycleCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DetectionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourcesReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		s.forward(ctx, send, eventCh)
	})
}

// forward sends a connection message, then relays eventCh until the client
// goes away.
func (s *Server) forward(ctx context.Context, send sse.Sender, eventCh <-chan any) {
	if err := send.Data(models.ConnectedEvent{
		Message:   "SSE connection established",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			if err := send.Data(event); err != nil {
				s.logger.Debug("SSE client gone", "error", err)
				return
			}
		}
	}
}
