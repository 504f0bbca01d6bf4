// Package exporters exposes collected metrics over HTTP and the in-process
// event bus.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus metrics HTTP handler serving every
// promauto-registered collector.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
