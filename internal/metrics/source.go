// Package metrics provides Prometheus metrics for frame sources and the
// acquisition pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camwatch"

var (
	sourceOnline = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "online",
		Help:      "Whether the source is online (1) or offline (0)",
	}, []string{"camera_id"})

	sourceReconnects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "reconnects_total",
		Help:      "Successful reopens since the source was created",
	}, []string{"camera_id"})

	sourceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "transitions_total",
		Help:      "State transitions by target state",
	}, []string{"camera_id", "state"})

	sourceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "events_total",
		Help:      "Detection events produced per source",
	}, []string{"camera_id"})

	// Local cache for SSE exporter access.
	sourceCache   = make(map[string]*SourceMetrics)
	sourceCacheMu sync.RWMutex
)

// SourceMetrics holds current metric values for a source.
type SourceMetrics struct {
	Online     bool
	Reconnects int
	Events     uint64
	LastChange time.Time
}

// SetSourceOnline records a state transition for a source.
func SetSourceOnline(cameraID string, online bool, reconnects int) {
	v, state := 0.0, "offline"
	if online {
		v, state = 1, "online"
	}
	sourceOnline.WithLabelValues(cameraID).Set(v)
	sourceReconnects.WithLabelValues(cameraID).Set(float64(reconnects))
	sourceTransitions.WithLabelValues(cameraID, state).Inc()
	updateCache(cameraID, func(m *SourceMetrics) {
		m.Online = online
		m.Reconnects = reconnects
		m.LastChange = time.Now()
	})
}

// IncSourceEvents counts one detection event for a source.
func IncSourceEvents(cameraID string) {
	sourceEvents.WithLabelValues(cameraID).Inc()
	updateCache(cameraID, func(m *SourceMetrics) { m.Events++ })
}

// DeleteSourceMetrics removes all metrics for a source.
func DeleteSourceMetrics(cameraID string) {
	sourceOnline.DeleteLabelValues(cameraID)
	sourceReconnects.DeleteLabelValues(cameraID)
	sourceTransitions.DeleteLabelValues(cameraID, "online")
	sourceTransitions.DeleteLabelValues(cameraID, "offline")
	sourceEvents.DeleteLabelValues(cameraID)

	sourceCacheMu.Lock()
	delete(sourceCache, cameraID)
	sourceCacheMu.Unlock()
}

// GetSourceMetrics returns current metric values for a source.
func GetSourceMetrics(cameraID string) *SourceMetrics {
	sourceCacheMu.RLock()
	defer sourceCacheMu.RUnlock()
	if m, ok := sourceCache[cameraID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllSourceMetrics returns metrics for all known sources.
func GetAllSourceMetrics() map[string]*SourceMetrics {
	sourceCacheMu.RLock()
	defer sourceCacheMu.RUnlock()
	result := make(map[string]*SourceMetrics, len(sourceCache))
	for id, m := range sourceCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(cameraID string, update func(*SourceMetrics)) {
	sourceCacheMu.Lock()
	defer sourceCacheMu.Unlock()
	m, ok := sourceCache[cameraID]
	if !ok {
		m = &SourceMetrics{}
		sourceCache[cameraID] = m
	}
	update(m)
}
