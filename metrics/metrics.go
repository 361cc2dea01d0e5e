// Package metrics exposes Prometheus instrumentation for a running node:
// connection state, SHIP frame throughput, and reconnect counts. The ship
// package does not report into a Registry itself; the only collector
// updated in this repository is Reconnects, which cmd/heatpump increments
// once per accepted connection.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors a node process registers once at
// startup and every connection reports into thereafter.
type Registry struct {
	ConnectionState  *prometheus.GaugeVec
	FramesSent       prometheus.Counter
	FramesReceived   prometheus.Counter
	Reconnects       prometheus.Counter
	DispatchErrors   *prometheus.CounterVec
	HandshakeSeconds prometheus.Histogram
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shipspine",
			Name:      "connection_state",
			Help:      "1 for the SME state this connection currently occupies, 0 otherwise.",
		}, []string{"remote_ski", "state"}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shipspine",
			Name:      "frames_sent_total",
			Help:      "SHIP frames written to the transport.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shipspine",
			Name:      "frames_received_total",
			Help:      "SHIP frames read from the transport.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shipspine",
			Name:      "reconnects_total",
			Help:      "Times a connection was re-established after closing.",
		}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shipspine",
			Name:      "dispatch_errors_total",
			Help:      "SPINE dispatch failures, by reason.",
		}, []string{"reason"}),
		HandshakeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shipspine",
			Name:      "handshake_seconds",
			Help:      "Wall-clock time from CmiStateInitStart to DataExchange.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.ConnectionState,
		m.FramesSent,
		m.FramesReceived,
		m.Reconnects,
		m.DispatchErrors,
		m.HandshakeSeconds,
	)
	return m
}

// SetState zeroes every other state label for remoteSki and raises state to
// 1, so a Prometheus query for the gauge's current value is unambiguous
// about which single state a connection occupies.
func (m *Registry) SetState(remoteSki string, states []string, current string) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1.0
		}
		m.ConnectionState.WithLabelValues(remoteSki, s).Set(v)
	}
}
