// Package metrics exposes listener and write counters through Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "social_connect"

// Registry records store listener activity and sync component outcomes.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	listenersActive *prometheus.GaugeVec
	listenersOpened *prometheus.CounterVec
	snapshots       *prometheus.CounterVec
	writesFailed    *prometheus.CounterVec
	writesRetried   *prometheus.CounterVec
	staleDiscarded  *prometheus.CounterVec
	published       *prometheus.CounterVec
	requestsLimited prometheus.Counter
	sessionsActive  prometheus.Gauge
}

// New creates a registry with Go runtime and process collectors attached
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		listenersActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listeners_active",
			Help:      "Open store listeners by kind.",
		}, []string{"kind"}),
		listenersOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listeners_opened_total",
			Help:      "Store listeners opened by kind.",
		}, []string{"kind"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_snapshots_total",
			Help:      "Snapshots delivered by the store listener hub.",
		}, []string{"kind"}),
		writesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_failed_total",
			Help:      "User actions that ended in a failure notification.",
		}, []string{"action"}),
		writesRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_retried_total",
			Help:      "Write attempts beyond the first.",
		}, []string{"action"}),
		staleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_discarded_total",
			Help:      "Assembled results dropped because a newer snapshot superseded them.",
		}, []string{"component"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots published to subscribers by component.",
		}, []string{"component"}),
		requestsLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rate_limited_total",
			Help:      "Gateway writes rejected by the per-identity limiter.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions holding a gateway client.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.listenersActive,
		r.listenersOpened,
		r.snapshots,
		r.writesFailed,
		r.writesRetried,
		r.staleDiscarded,
		r.published,
		r.requestsLimited,
		r.sessionsActive,
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

func (r *Registry) ListenerOpened(kind string) {
	if r == nil {
		return
	}
	r.listenersOpened.WithLabelValues(kind).Inc()
	r.listenersActive.WithLabelValues(kind).Inc()
}

func (r *Registry) ListenerClosed(kind string) {
	if r == nil {
		return
	}
	r.listenersActive.WithLabelValues(kind).Dec()
}

func (r *Registry) SnapshotDelivered(kind string) {
	if r == nil {
		return
	}
	r.snapshots.WithLabelValues(kind).Inc()
}

func (r *Registry) WriteFailed(action string) {
	if r == nil {
		return
	}
	r.writesFailed.WithLabelValues(action).Inc()
}

func (r *Registry) WriteRetried(action string) {
	if r == nil {
		return
	}
	r.writesRetried.WithLabelValues(action).Inc()
}

func (r *Registry) StaleDiscarded(component string) {
	if r == nil {
		return
	}
	r.staleDiscarded.WithLabelValues(component).Inc()
}

func (r *Registry) SnapshotPublished(component string) {
	if r == nil {
		return
	}
	r.published.WithLabelValues(component).Inc()
}

// RequestLimited counts a write rejected by the gateway limiter
func (r *Registry) RequestLimited() {
	if r == nil {
		return
	}
	r.requestsLimited.Inc()
}

// SessionsActive sets the number of sessions with a live client
func (r *Registry) SessionsActive(n int) {
	if r == nil {
		return
	}
	r.sessionsActive.Set(float64(n))
}
