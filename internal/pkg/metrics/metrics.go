// Package metrics holds the Prometheus collectors for chain actions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "farmily"

// Metrics groups every collector the module exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Transitions    *prometheus.CounterVec   // kind, state
	ReceiptWait    *prometheus.HistogramVec // kind
	GasLimit       *prometheus.HistogramVec // method
	ChainErrors    *prometheus.CounterVec   // op, kind
	BackendErrors  *prometheus.CounterVec   // role, status
	LedgerErrors   prometheus.Counter
	PendingPolled  prometheus.Gauge
	OutboxRelayed  *prometheus.CounterVec // result
	ConnectPrompts prometheus.Counter
}

// New creates the collectors and registers them, plus the Go and process
// collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_transitions_total",
			Help:      "Action state transitions by kind and target state.",
		}, []string{"kind", "state"}),
		ReceiptWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_wait_seconds",
			Help:      "Time from submission to mined receipt.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120},
		}, []string{"kind"}),
		GasLimit: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_limit",
			Help:      "Gas limit submitted per contract method.",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 8),
		}, []string{"method"}),
		ChainErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_errors_total",
			Help:      "Classified chain errors by operation.",
		}, []string{"op", "kind"}),
		BackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed REST backend calls by role and HTTP status.",
		}, []string{"role", "status"}),
		LedgerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_errors_total",
			Help:      "Action ledger writes that failed after submission.",
		}),
		PendingPolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_transfers",
			Help:      "Pending transfers seen by the last poll.",
		}),
		OutboxRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relayed_total",
			Help:      "Action events relayed to the message bus.",
		}, []string{"result"}),
		ConnectPrompts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_connect_prompts_total",
			Help:      "eth_requestAccounts prompts issued.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transitions, m.ReceiptWait, m.GasLimit, m.ChainErrors, m.BackendErrors,
		m.LedgerErrors, m.PendingPolled, m.OutboxRelayed, m.ConnectPrompts,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Transition(kind, state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) ObserveReceiptWait(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.ReceiptWait.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) ObserveGasLimit(method string, gas uint64) {
	if m == nil {
		return
	}
	m.GasLimit.WithLabelValues(method).Observe(float64(gas))
}

func (m *Metrics) ChainError(op, kind string) {
	if m == nil {
		return
	}
	m.ChainErrors.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) BackendError(role, status string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(role, status).Inc()
}

func (m *Metrics) LedgerError() {
	if m == nil {
		return
	}
	m.LedgerErrors.Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingPolled.Set(float64(n))
}

func (m *Metrics) Relayed(result string) {
	if m == nil {
		return
	}
	m.OutboxRelayed.WithLabelValues(result).Inc()
}

func (m *Metrics) ConnectPrompt() {
	if m == nil {
		return
	}
	m.ConnectPrompts.Inc()
}
