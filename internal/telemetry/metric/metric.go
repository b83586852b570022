// Package metric provides Prometheus metrics for SockMesh.
//
// It exposes session lifecycle counters, save queue depth, and
// latency histograms in Prometheus format for monitoring.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load result label values.
const (
	LoadResultCreated  = "created"  // empty token, fresh session issued
	LoadResultResumed  = "resumed"  // existing row rehydrated
	LoadResultReplaced = "replaced" // expired or missing row, new token issued
	LoadResultError    = "error"    // storage lookup failed
)

// Save result label values.
const (
	SaveResultOK      = "ok"
	SaveResultError   = "error"
	SaveResultSkipped = "skipped" // no token assigned
	SaveResultDropped = "dropped" // save queue full
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Session lifecycle
	SessionLoads *prometheus.CounterVec
	SessionSaves *prometheus.CounterVec

	// Write-behind saver
	SaveQueueDepth prometheus.Gauge
	SaveDuration   prometheus.Histogram

	// Transport
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
}

// NewRegistry creates a metrics registry with all application metrics
// plus the standard Go runtime and process collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		SessionLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sockmesh",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Session load operations by result.",
		}, []string{"result"}),
		SessionSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sockmesh",
			Subsystem: "session",
			Name:      "saves_total",
			Help:      "Session save operations by result.",
		}, []string{"result"}),
		SaveQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sockmesh",
			Subsystem: "session",
			Name:      "save_queue_depth",
			Help:      "Pending write-behind saves.",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sockmesh",
			Subsystem: "session",
			Name:      "save_duration_seconds",
			Help:      "Latency of persistence upserts.",
			Buckets:   prometheus.DefBuckets,
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sockmesh",
			Subsystem: "transport",
			Name:      "connections_active",
			Help:      "Currently open socket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sockmesh",
			Subsystem: "transport",
			Name:      "connections_total",
			Help:      "Accepted socket connections.",
		}),
	}

	reg.MustRegister(
		r.SessionLoads,
		r.SessionSaves,
		r.SaveQueueDepth,
		r.SaveDuration,
		r.ConnectionsActive,
		r.ConnectionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Prometheus returns the underlying prometheus registry, for
// components that register their own collectors (e.g. the Badger
// store's size gauges).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
