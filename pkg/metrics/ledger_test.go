package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.Observe("settle_via_balance", nil)
	m.Observe("settle_via_balance", errors.New("insufficient"))
	m.Observe("settle_via_balance", nil)
	m.IncMismatch()
	m.SetFrozenAccounts(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	ok := sample(t, families, "ledger_operations_total", map[string]string{"operation": "settle_via_balance", "outcome": "ok"})
	assert.Equal(t, 2.0, ok.GetCounter().GetValue())
	failed := sample(t, families, "ledger_operations_total", map[string]string{"operation": "settle_via_balance", "outcome": "error"})
	assert.Equal(t, 1.0, failed.GetCounter().GetValue())
	assert.Equal(t, 1.0, sample(t, families, "ledger_reconciliation_mismatches_total", nil).GetCounter().GetValue())
	assert.Equal(t, 2.0, sample(t, families, "ledger_frozen_accounts", nil).GetGauge().GetValue())
}

func TestGatewayMetricsObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)
	m.ObserveCall("mirpay", "create_payment", 120*time.Millisecond, nil)
	m.IncWebhook("mirpay", "duplicate")

	families, err := reg.Gather()
	require.NoError(t, err)

	latency := sample(t, families, "gateway_request_duration_seconds", map[string]string{"operation": "create_payment"})
	assert.Greater(t, latency.GetHistogram().GetSampleSum(), 0.0)
	webhooks := sample(t, families, "gateway_webhooks_total", map[string]string{"result": "duplicate"})
	assert.Equal(t, 1.0, webhooks.GetCounter().GetValue())
}

func TestNilMetricsAreNoops(t *testing.T) {
	var lm *LedgerMetrics
	lm.Observe("x", nil)
	lm.IncMismatch()
	var gm *GatewayMetrics
	gm.ObserveCall("g", "op", time.Second, nil)
	NewLedgerMetrics(nil).Observe("x", nil)
}
