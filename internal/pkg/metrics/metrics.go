// Package metrics exposes the dashboard's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	refreshes      *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec
	edgeRedirects  *prometheus.CounterVec
	logouts        *prometheus.CounterVec
	wsConnections  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions.",
		}, []string{"decision"}),
		edgeRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "edge_gate_redirects_total",
			Help:      "Redirects issued by the edge request gate.",
		}, []string{"rule"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "logouts_total",
			Help:      "Session teardowns by reason.",
		}, []string{"reason"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Name:      "ws_connections",
			Help:      "Open notification/presence websocket connections.",
		}),
	}
	reg.MustRegister(m.refreshes, m.guardDecisions, m.edgeRedirects, m.logouts, m.wsConnections)
	return m
}

// Refresh records a refresh outcome: "ok", "reused", "failed".
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GuardDecision(decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) EdgeRedirect(rule string) {
	if m == nil {
		return
	}
	m.edgeRedirects.WithLabelValues(rule).Inc()
}

func (m *Metrics) Logout(reason string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(reason).Inc()
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
