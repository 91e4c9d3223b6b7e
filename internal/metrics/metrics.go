// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Intent results.
const (
	ResultOK           = "ok"
	ResultValidation   = "validation"
	ResultNotConnected = "not_connected"
	ResultRemote       = "remote"
	ResultStale        = "stale"
)

// Metrics groups the sync engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	intents     *prometheus.CounterVec
	events      *prometheus.CounterVec
	resyncs     prometheus.Counter
	unconfirmed prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_intents_total",
			Help: "Intents issued to the sync coordinator, by intent and result.",
		}, []string{"intent", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairchat_events_total",
			Help: "Push events folded into local state, by kind.",
		}, []string{"kind"}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairchat_resyncs_total",
			Help: "Snapshot resyncs triggered by a restored connection.",
		}),
		unconfirmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairchat_unconfirmed_messages",
			Help: "Locally sent messages that are pending or failed.",
		}),
	}
	m.registry.MustRegister(
		m.intents,
		m.events,
		m.resyncs,
		m.unconfirmed,
		collectors.NewGoCollector(),
	)
	return m
}

// Intent counts one intent outcome.
func (m *Metrics) Intent(intent, result string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent, result).Inc()
}

// Event counts one folded push event.
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Resync() {
	if m == nil {
		return
	}
	m.resyncs.Inc()
}

func (m *Metrics) SetUnconfirmed(n int) {
	if m == nil {
		return
	}
	m.unconfirmed.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
