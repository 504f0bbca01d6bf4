package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camwatch/internal/events"
	"github.com/smazurov/camwatch/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	id := "sse-test-source"
	metrics.DeleteSourceMetrics(id)
	defer metrics.DeleteSourceMetrics(id)

	metrics.SetSourceOnline(id, true, 4)
	metrics.IncSourceEvents(id)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	select {
	case <-mock.published:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for metrics publish")
	}

	cancel()
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		sme, ok := ev.(events.SourceMetricsEvent)
		if !ok || sme.CameraID != id {
			continue
		}
		found = true
		if !sme.Online || sme.Reconnects != "4" || sme.Events != "1" {
			t.Errorf("event = %+v", sme)
		}
		if sme.EventType != "source_metrics" {
			t.Errorf("EventType = %q", sme.EventType)
		}
	}
	if !found {
		t.Error("no SourceMetricsEvent for test source")
	}
}

func TestSSEExporterStopWithoutStart(_ *testing.T) {
	exporter := NewSSEExporter(newMockEventBus())
	exporter.Stop()
}

func TestGetEventTypes(t *testing.T) {
	types := GetEventTypes()
	if _, ok := types["source-metrics"].(events.SourceMetricsEvent); !ok {
		t.Errorf("source-metrics type = %T", types["source-metrics"])
	}
}
