package webhook

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/railzwaylabs/paybridge/internal/observability/metrics"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockProcessor implements only the webhook half of the processor contract;
// the embedded interface panics on anything else.
type mockProcessor struct {
	mock.Mock
	domain.PaymentProcessor
	provider domain.Provider
	header   string
}

func (m *mockProcessor) Provider() domain.Provider { return m.provider }

func (m *mockProcessor) SignatureHeader() string { return m.header }

func (m *mockProcessor) VerifySignature(payload []byte, signature, secret string) bool {
	return m.Called(payload, signature, secret).Bool(0)
}

func (m *mockProcessor) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	event, _ := args.Get(0).(*domain.WebhookEvent)
	return event, args.Error(1)
}

func newTestService(t *testing.T, processor domain.PaymentProcessor, secret string) (*Service, *observer.ObservedLogs, *prometheus.Registry) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPaymentMetrics(reg, metrics.Config{})
	require.NoError(t, err)
	return NewService(Params{Log: zap.New(core), Processor: processor, Secret: Secret(secret), Metrics: m}), logs, reg
}

func signedHeaders(value string) http.Header {
	h := http.Header{}
	h.Set("X-Signature", value)
	return h
}

func TestIngestWebhookAccepted(t *testing.T) {
	payload := []byte(`{"meta":{"event_name":"order_created"},"data":{"card":{"number":"4242"}}}`)
	proc := &mockProcessor{provider: domain.ProviderLemonSqueezy, header: "X-Signature"}
	proc.On("VerifySignature", payload, "abc", "whsec").Return(true)
	proc.On("ParseWebhook", mock.Anything, payload, "abc").Return(&domain.WebhookEvent{
		ID: "evt_1", Type: "order_created", Processor: domain.ProviderLemonSqueezy, ReceivedAt: time.Now(),
	}, nil)

	svc, logs, reg := newTestService(t, proc, "whsec")
	event, err := svc.IngestWebhook(context.Background(), "LemonSqueezy", payload, signedHeaders("abc"))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	proc.AssertExpectations(t)

	accepted := logs.FilterMessage("webhook accepted").All()
	require.Len(t, accepted, 1)
	assert.Equal(t, "evt_1", accepted[0].ContextMap()["event_id"])
	count, err := testutil.GatherAndCount(reg, "paybridge_webhooks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestWebhookRejections(t *testing.T) {
	payload := []byte(`{"meta":{"event_name":"order_created"}}`)

	t.Run("mismatched provider", func(t *testing.T) {
		proc := &mockProcessor{provider: domain.ProviderStripe, header: "Stripe-Signature"}
		svc, _, _ := newTestService(t, proc, "whsec")
		_, err := svc.IngestWebhook(context.Background(), "paddle", payload, nil)
		var perr *domain.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, CodeUnknownProvider, perr.Code)
	})

	t.Run("missing secret", func(t *testing.T) {
		proc := &mockProcessor{provider: domain.ProviderLemonSqueezy, header: "X-Signature"}
		svc, _, _ := newTestService(t, proc, "")
		_, err := svc.IngestWebhook(context.Background(), "lemonsqueezy", payload, signedHeaders("abc"))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		proc.AssertNotCalled(t, "ParseWebhook", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing header", func(t *testing.T) {
		proc := &mockProcessor{provider: domain.ProviderLemonSqueezy, header: "X-Signature"}
		svc, _, _ := newTestService(t, proc, "whsec")
		_, err := svc.IngestWebhook(context.Background(), "lemonsqueezy", payload, http.Header{})
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("forged signature", func(t *testing.T) {
		proc := &mockProcessor{provider: domain.ProviderLemonSqueezy, header: "X-Signature"}
		proc.On("VerifySignature", payload, "forged", "whsec").Return(false)
		svc, logs, _ := newTestService(t, proc, "whsec")
		_, err := svc.IngestWebhook(context.Background(), "lemonsqueezy", payload, signedHeaders("forged"))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Equal(t, 1, logs.FilterMessage("webhook signature rejected").Len())
		proc.AssertNotCalled(t, "ParseWebhook", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("body signed provider", func(t *testing.T) {
		form := []byte("alert_name=subscription_created&p_signature=xyz")
		proc := &mockProcessor{provider: domain.ProviderPaddle}
		proc.On("VerifySignature", form, "", "key").Return(true)
		proc.On("ParseWebhook", mock.Anything, form, "").Return(nil, domain.NewWebhookError(domain.ProviderPaddle, domain.CodeInvalidPayload, "bad"))
		svc, _, _ := newTestService(t, proc, "key")
		_, err := svc.IngestWebhook(context.Background(), "paddle", form, http.Header{})
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		proc.AssertExpectations(t)
	})
}

func TestMaskPayload(t *testing.T) {
	masked := maskPayload([]byte(`{"card": "4242", "user": {"billing_details": "secret", "api_key": "sk_test_abcdef"}, "other": "ok"}`))
	assert.Equal(t, "***", masked["card"])
	assert.Equal(t, "ok", masked["other"])

	user, _ := masked["user"].(map[string]any)
	assert.Equal(t, "***", user["billing_details"])
	assert.Equal(t, "****cdef", user["api_key"])

	form := maskPayload([]byte("alert_name=payment_succeeded&p_signature=c2lnbmF0dXJl"))
	assert.Equal(t, "payment_succeeded", form["alert_name"])
	assert.Equal(t, "****dXJl", form["p_signature"])
}
