package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestStatusClassAndKnownProcessor(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(http.StatusOK))
	assert.Equal(t, "4xx", StatusClass(http.StatusUnauthorized))
	assert.Equal(t, "5xx", StatusClass(http.StatusBadGateway))
	assert.Equal(t, "unknown", StatusClass(0))

	assert.Equal(t, "stripe", KnownProcessor(" Stripe "))
	assert.Equal(t, "lemonsqueezy", KnownProcessor("lemonsqueezy"))
	assert.Equal(t, "other", KnownProcessor("../../etc/passwd"))
}

func TestGinMiddlewareCountsWebhookDeliveries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := sdkmetric.NewManualReader()
	m, err := NewHTTPMetrics(Config{}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(GinMiddleware(m))
	engine.POST("/webhooks/:provider", func(c *gin.Context) {
		if c.Param("provider") == "stripe" {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusNotFound)
	})
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/webhooks/stripe", "/webhooks/stripe", "/webhooks/bogus"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "paybridge.webhook.deliveries" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				processor, _ := dp.Attributes.Value(attribute.Key("processor"))
				class, _ := dp.Attributes.Value(attribute.Key("status_class"))
				counts[processor.AsString()+"/"+class.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"stripe/2xx": 2, "other/4xx": 1}, counts)
}
