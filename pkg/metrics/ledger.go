package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts balance operations and reconciliation outcomes.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	mismatches prometheus.Counter
	frozen     prometheus.Gauge
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by name and outcome.",
	}, []string{"operation", "outcome"})
	mismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reconciliation_mismatches_total",
		Help: "Accounts whose cached balance disagreed with the balance log.",
	})
	frozen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_frozen_accounts",
		Help: "Accounts frozen as of the last reconciliation pass.",
	})
	reg.MustRegister(operations, mismatches, frozen)
	return &LedgerMetrics{operations: operations, mismatches: mismatches, frozen: frozen}
}

// Observe records one ledger operation. A nil err counts as "ok".
func (m *LedgerMetrics) Observe(operation string, err error) {
	if m == nil || m.operations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

func (m *LedgerMetrics) IncMismatch() {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.Inc()
}

func (m *LedgerMetrics) SetFrozenAccounts(n int) {
	if m == nil || m.frozen == nil {
		return
	}
	m.frozen.Set(float64(n))
}

// GatewayMetrics tracks outbound gateway latency and webhook ingestion.
type GatewayMetrics struct {
	latency  *prometheus.HistogramVec
	webhooks *prometheus.CounterVec
}

func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"gateway", "operation", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhooks_total",
		Help: "Inbound gateway webhooks by result.",
	}, []string{"gateway", "result"})
	reg.MustRegister(latency, webhooks)
	return &GatewayMetrics{latency: latency, webhooks: webhooks}
}

func (m *GatewayMetrics) ObserveCall(gateway, operation string, duration time.Duration, err error) {
	if m == nil || m.latency == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.latency.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

func (m *GatewayMetrics) IncWebhook(gateway, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(gateway), normalizeLabel(result)).Inc()
}
