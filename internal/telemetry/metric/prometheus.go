package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kraken"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CacheLookups     *prometheus.CounterVec

	SnapshotReloads *prometheus.CounterVec
	SnapshotID      prometheus.Gauge
	PrimitiveCalls  prometheus.Counter
	IdleWorkers     prometheus.Gauge
}

// NewRegistry creates a registry with the kraken instruments and the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served by the workers, by api and outcome.",
		}, []string{"api", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent serving one request.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"api"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Worker cache lookups, by cache and result.",
		}, []string{"cache", "result"}),
		SnapshotReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reloads_total",
			Help:      "Snapshot load attempts, by result.",
		}, []string{"result"}),
		SnapshotID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_id",
			Help:      "Identifier of the published snapshot.",
		}),
		PrimitiveCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_primitive_calls_total",
			Help:      "Calls to the journey search primitive.",
		}),
		IdleWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_idle_workers",
			Help:      "Workers waiting for a request.",
		}),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RequestsInFlight,
		r.CacheLookups,
		r.SnapshotReloads,
		r.SnapshotID,
		r.PrimitiveCalls,
		r.IdleWorkers,
	)
	return r
}

// MustRegister adds extra collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordRequest counts one served request.
func (r *Registry) RecordRequest(api, status string, seconds float64) {
	r.RequestsTotal.WithLabelValues(api, status).Inc()
	r.RequestDuration.WithLabelValues(api).Observe(seconds)
}

// RecordCacheLookups adds hits and misses for a cache.
func (r *Registry) RecordCacheLookups(cache string, hits, misses int) {
	if hits > 0 {
		r.CacheLookups.WithLabelValues(cache, "hit").Add(float64(hits))
	}
	if misses > 0 {
		r.CacheLookups.WithLabelValues(cache, "miss").Add(float64(misses))
	}
}

// RecordReload counts a load attempt and, on success, the new snapshot id.
func (r *Registry) RecordReload(result string, snapshotID uint64) {
	r.SnapshotReloads.WithLabelValues(result).Inc()
	if snapshotID > 0 {
		r.SnapshotID.Set(float64(snapshotID))
	}
}
