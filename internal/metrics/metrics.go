// Package metrics exposes the broker's Prometheus collectors, replacing
// the teacher's hand-rolled atomic internal/monitoring.HubMetrics with
// real prometheus/client_golang collectors registered on the default
// registry and served over HTTP (see cmd/oef-broker/main.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broker aggregates every metric the scheduler and network listener
// update while running.
type Broker struct {
	SessionsConnected prometheus.Gauge
	SessionsTotal     prometheus.Counter
	DuplicateConnects prometheus.Counter
	MessagesRouted    prometheus.Counter
	MessagesDropped   *prometheus.CounterVec
	SearchLatency     prometheus.Histogram
	HandshakeFailures prometheus.Counter
}

// NewBroker registers and returns a Broker metrics bundle. Pass a
// distinct registry in tests to avoid duplicate-registration panics
// against prometheus.DefaultRegisterer.
func NewBroker(registerer prometheus.Registerer) *Broker {
	factory := promauto.With(registerer)

	return &Broker{
		SessionsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "sessions_connected",
			Help:      "Number of agent sessions currently connected.",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "sessions_total",
			Help:      "Total number of sessions successfully connected since start.",
		}),
		DuplicateConnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "duplicate_connects_total",
			Help:      "Total number of connect attempts rejected as a duplicate key.",
		}),
		MessagesRouted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "messages_routed_total",
			Help:      "Total number of frames successfully dispatched to a bound agent.",
		}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "messages_dropped_total",
			Help:      "Total number of frames dropped by the dispatch worker, by reason.",
		}, []string{"reason"}),
		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "search_duration_seconds",
			Help:      "Time to answer search_agents/search_services requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		HandshakeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "oef",
			Subsystem: "broker",
			Name:      "handshake_failures_total",
			Help:      "Total number of handshake attempts that ended in Failed.",
		}),
	}
}
