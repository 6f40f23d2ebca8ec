package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/paybridge/internal/config"
	"github.com/railzwaylabs/paybridge/internal/observability/metrics"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/xendit"
	"github.com/railzwaylabs/paybridge/internal/payment/provider"
	paymentservice "github.com/railzwaylabs/paybridge/internal/payment/service"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"github.com/railzwaylabs/paybridge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	processorCfg := provider.Config{
		Provider: "xendit",
		Xendit:   &xendit.Config{SecretKey: "xnd_development_key", CallbackToken: "cb-token"},
	}
	processor, err := provider.New(processorCfg, provider.Options{})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewPaymentMetrics(reg, metrics.Config{})
	require.NoError(t, err)

	log := zap.NewNop()
	return NewServer(Params{
		Config: config.Config{Server: config.ServerConfig{MaxBodyBytes: 1024}},
		Log:    log,
		Webhooks: webhook.NewService(webhook.Params{
			Log:       log,
			Processor: processor,
			Secret:    webhook.Secret(processorCfg.WebhookSecret()),
			Metrics:   m,
		}),
		Payments: paymentservice.New(paymentservice.Params{Processor: processor, Storage: storage.NewMemory(0, nil)}),
		Gatherer: reg,
	})
}

func post(s *Server, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Callback-Token", token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookEndpoint(t *testing.T) {
	s := newTestServer(t)
	const callback = `{"id":"inv_1","status":"PAID","external_id":"order-1"}`

	cases := []struct {
		name   string
		path   string
		body   string
		token  string
		status int
		code   string
	}{
		{"valid", "/webhooks/xendit", callback, "cb-token", http.StatusOK, ""},
		{"forged", "/webhooks/xendit", callback, "guess", http.StatusUnauthorized, "invalid_signature"},
		{"missing token", "/webhooks/xendit", callback, "", http.StatusUnauthorized, "invalid_signature"},
		{"other provider", "/webhooks/stripe", callback, "cb-token", http.StatusNotFound, "unknown_provider"},
		{"not json", "/webhooks/xendit", "status=PAID", "cb-token", http.StatusBadRequest, "invalid_payload"},
		{"too large", "/webhooks/xendit", `{"pad":"` + strings.Repeat("x", 2048) + `"}`, "cb-token", http.StatusRequestEntityTooLarge, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(s, tc.path, tc.body, tc.token)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.code != "" {
				assert.Contains(t, rec.Body.String(), `"code":"`+tc.code+`"`)
			}
		})
	}

	rec := post(s, "/webhooks/xendit", callback, "cb-token")
	assert.JSONEq(t, `{"received":true,"id":"inv_1","type":"invoice.paid"}`, rec.Body.String())
}

func TestHealthReadinessAndMetrics(t *testing.T) {
	s := newTestServer(t)
	post(s, "/webhooks/xendit", `{"id":"inv_1","status":"PAID"}`, "cb-token")

	for path, want := range map[string]string{
		"/healthz": `"status":"ok"`,
		"/readyz":  `"provider":"xendit"`,
		"/metrics": `paybridge_webhooks_total`,
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
	}
}
