package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "cycle_duration_seconds",
		Help:      "Time spent on one acquisition cycle",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	liveSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "live_sources",
		Help:      "Sources that produced a frame in the last cycle",
	})

	configuredSources = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "sources",
		Help:      "Sources polled in the last cycle",
	})

	detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "detections_total",
		Help:      "Detections by class label",
	}, []string{"label"})

	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "events_published_total",
		Help:      "Events handed to the broadcast channel",
	})

	publishedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "broadcast",
		Name:      "published_bytes_total",
		Help:      "Encoded event bytes handed to the broadcast channel",
	})
)

// ObserveCycle records one completed acquisition cycle.
func ObserveCycle(d time.Duration, sources, live int) {
	cycleDuration.Observe(d.Seconds())
	configuredSources.Set(float64(sources))
	liveSources.Set(float64(live))
}

// AddDetections counts one detection per label.
func AddDetections(labels []string) {
	for _, l := range labels {
		detections.WithLabelValues(l).Inc()
	}
}

// AddPublished counts one published event of the given encoded size.
func AddPublished(bytes int) {
	eventsPublished.Inc()
	publishedBytes.Add(float64(bytes))
}
