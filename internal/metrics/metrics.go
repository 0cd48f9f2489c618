package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Outcome string

const (
	Success Outcome = "success"
	Error   Outcome = "error"
)

func (o Outcome) String() string {
	return string(o)
}

// Metrics are the engine and API collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	opDuration       *prometheus.HistogramVec
	opErrors         *prometheus.CounterVec
	journalSeq       prometheus.Gauge
	activePrincipal  prometheus.Gauge
	activeDeposits   prometheus.Gauge
	claimable        prometheus.Gauge
	violations       *prometheus.CounterVec
	publishErrors    prometheus.Counter
	httpRequestTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staking_operation_duration_seconds",
				Help:    "Histogram of engine operation durations in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind", "outcome"},
		),
		opErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_operation_errors_total",
				Help: "Rejected engine operations by kind and error.",
			},
			[]string{"kind", "error"},
		),
		journalSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_journal_sequence",
			Help: "Sequence number of the last committed operation.",
		}),
		activePrincipal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_active_principal_tokens",
			Help: "Sum of active deposit principal, in base units.",
		}),
		activeDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_active_deposits",
			Help: "Number of active deposits.",
		}),
		claimable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staking_ledger_claimable_tokens",
			Help: "Sum of claimable deposit ledger balances, in base units.",
		}),
		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_invariant_violations_total",
				Help: "Invariant violations found by the journal auditor.",
			},
			[]string{"invariant"},
		),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staking_event_publish_errors_total",
			Help: "Events that could not be published after commit.",
		}),
		httpRequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
	}
	reg.MustRegister(
		m.opDuration,
		m.opErrors,
		m.journalSeq,
		m.activePrincipal,
		m.activeDeposits,
		m.claimable,
		m.violations,
		m.publishErrors,
		m.httpRequestTotal,
	)
	return m
}

func (m *Metrics) RecordOperation(kind string, outcome Outcome, took time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(kind, outcome.String()).Observe(took.Seconds())
}

func (m *Metrics) RecordOperationError(kind, reason string) {
	if m == nil {
		return
	}
	m.opErrors.WithLabelValues(kind, reason).Inc()
}

// Snapshot exports the pool and ledger gauges after a commit.
func (m *Metrics) Snapshot(seq uint64, activePrincipal *big.Int, activeDeposits int, claimable *big.Int) {
	if m == nil {
		return
	}
	m.journalSeq.Set(float64(seq))
	m.activePrincipal.Set(bigFloat(activePrincipal))
	m.activeDeposits.Set(float64(activeDeposits))
	m.claimable.Set(bigFloat(claimable))
}

func (m *Metrics) RecordViolation(invariant string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(invariant).Inc()
}

func (m *Metrics) RecordPublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequestTotal.WithLabelValues(method, route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
