// Package collectors feeds in-process bus notifications into the metrics
// package.
package collectors

import (
	"sync"
	"time"

	"github.com/smazurov/camwatch/internal/events"
	"github.com/smazurov/camwatch/internal/logging"
	"github.com/smazurov/camwatch/internal/metrics"
)

// Subscriber is the subset of events.Bus the collector needs.
type Subscriber interface {
	Subscribe(handler any) func()
}

// BusCollector translates bus events into Prometheus metrics.
type BusCollector struct {
	bus    Subscriber
	logger logging.Logger

	mu     sync.Mutex
	known  map[string]bool
	unsubs []func()
}

// NewBusCollector creates a collector for bus.
func NewBusCollector(bus Subscriber) *BusCollector {
	return &BusCollector{
		bus:    bus,
		logger: logging.GetLogger("metrics"),
		known:  make(map[string]bool),
	}
}

// Start subscribes to the bus.
func (c *BusCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubs != nil {
		return
	}
	c.unsubs = []func(){
		c.bus.Subscribe(c.onStateChanged),
		c.bus.Subscribe(c.onCycle),
		c.bus.Subscribe(c.onDetection),
		c.bus.Subscribe(c.onReload),
	}
	c.logger.Debug("Metrics collector subscribed to bus")
}

// Stop unsubscribes from the bus.
func (c *BusCollector) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (c *BusCollector) onStateChanged(e events.SourceStateChangedEvent) {
	c.mu.Lock()
	c.known[e.CameraID] = true
	c.mu.Unlock()
	metrics.SetSourceOnline(e.CameraID, e.Online(), e.Reconnects)
}

func (c *BusCollector) onCycle(e events.CycleCompletedEvent) {
	metrics.ObserveCycle(time.Duration(e.DurationMs*float64(time.Millisecond)), e.Sources, e.Live)
}

func (c *BusCollector) onDetection(e events.DetectionEvent) {
	metrics.IncSourceEvents(e.CameraID)
	metrics.AddDetections(e.Labels)
	metrics.AddPublished(e.Bytes)
}

// onReload drops series for sources that are no longer configured.
func (c *BusCollector) onReload(e events.SourcesReloadedEvent) {
	current := make(map[string]bool, len(e.Sources))
	for _, id := range e.Sources {
		current[id] = true
	}

	c.mu.Lock()
	var stale []string
	for id := range c.known {
		if !current[id] {
			stale = append(stale, id)
			delete(c.known, id)
		}
	}
	c.mu.Unlock()

	for _, id := range stale {
		metrics.DeleteSourceMetrics(id)
		c.logger.Debug("Dropped metrics for removed source", "camera_id", id)
	}
}
