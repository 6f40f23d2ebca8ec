package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPaymentMetrics(reg, Config{ServiceName: "paybridge-test", Environment: "test"})
	require.NoError(t, err)

	m.ObserveCall("stripe", "create_customer", nil, "", 20*time.Millisecond)
	m.ObserveCall("stripe", "create_customer", errors.New("down"), "network", time.Second)
	m.ObserveRetry("stripe", "create_customer")
	m.ObserveCache("paybridge.subscriptions", true)
	m.ObserveCache("paybridge.subscriptions", false)
	m.ObserveWebhook("paddle", "accepted")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("stripe", "create_customer", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("stripe", "create_customer", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("stripe", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("stripe", "create_customer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("paybridge.subscriptions", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("paddle", "accepted")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			assert.Equal(t, "test", labels["env"])
		}
	}
	assert.Contains(t, names, "paybridge_processor_call_duration_seconds")
}

func TestNilPaymentMetricsIsNoop(t *testing.T) {
	var m *PaymentMetrics
	assert.NotPanics(t, func() {
		m.ObserveCall("stripe", "x", nil, "", time.Millisecond)
		m.ObserveRetry("stripe", "x")
		m.ObserveCache("k", true)
		m.ObserveWebhook("stripe", "rejected")
	})
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPaymentMetrics(reg, Config{})
	require.NoError(t, err)
	_, err = NewPaymentMetrics(reg, Config{})
	assert.Error(t, err)
}
