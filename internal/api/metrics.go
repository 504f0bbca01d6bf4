package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camwatch/internal/api/models"
	"github.com/smazurov/camwatch/internal/events"
	"github.com/smazurov/camwatch/internal/metrics/exporters"
)

// registerMetricsRoutes registers the periodic per-source metrics stream.
func (s *Server) registerMetricsRoutes() {
	eventTypes := map[string]any{"connected": models.ConnectedEvent{}}
	maps.Copy(eventTypes, exporters.GetEventTypes())

	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "Per-source counters published once per second",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, sseBuffer)
		unsubscribe := events.SubscribeToChannel[events.SourceMetricsEvent](s.eventBus, eventCh)
		defer unsubscribe()

		s.forward(ctx, send, eventCh)
	})
}
