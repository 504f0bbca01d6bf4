package exporters

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/camwatch/internal/events"
	"github.com/smazurov/camwatch/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes per-source metrics on the event bus so
// SSE clients can follow them.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	all := metrics.GetAllSourceMetrics()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := all[id]
		s.eventBus.Publish(events.SourceMetricsEvent{
			EventType:  "source_metrics",
			CameraID:   id,
			Online:     m.Online,
			Reconnects: strconv.Itoa(m.Reconnects),
			Events:     strconv.FormatUint(m.Events, 10),
		})
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"source-metrics": events.SourceMetricsEvent{},
	}
}
