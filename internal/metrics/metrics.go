// Package metrics provides Prometheus metrics for the wiki: HTTP traffic,
// page saves, revision conflicts and render cache performance.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "camelwiki"

var (
	// HTTPRequestsTotal counts HTTP requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration measures HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency distribution",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"route", "method"})

	// SavesTotal counts page saves by variant and outcome.
	SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "page_saves_total",
		Help:      "Page saves by variant and status",
	}, []string{"variant", "status"})

	// RevisionConflicts counts version collisions seen while creating revisions.
	RevisionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "revision_conflicts_total",
		Help:      "Revision version collisions that triggered a retry",
	})

	// RenderDuration measures markup to HTML conversion time.
	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "render_duration_seconds",
		Help:      "Markup rendering latency by format",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	}, []string{"format"})

	// ContentSize tracks the size of saved page bodies.
	ContentSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Saved page body size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	})

	// CacheHits counts render cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "render_cache_hits_total",
		Help:      "Total render cache hit count",
	})

	// CacheMisses counts render cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "render_cache_misses_total",
		Help:      "Total render cache miss count",
	})

	// CacheErrors counts failed render cache reads and writes.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "render_cache_errors_total",
		Help:      "Render cache errors by operation",
	}, []string{"operation"})

	// PanicsRecovered counts panics recovered by the HTTP middleware.
	PanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in HTTP handlers",
	})
)

// RecordSave records the outcome of a page save.
func RecordSave(variant string, bodySize int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SavesTotal.WithLabelValues(variant, status).Inc()
	if err == nil {
		ContentSize.Observe(float64(bodySize))
	}
}

// RecordCacheAccess records a render cache hit or miss.
func RecordCacheAccess(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
