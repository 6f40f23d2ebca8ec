package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics measures the ingress server. Webhook deliveries are labelled
// with the processor named in the route; anything else in that position is
// folded into "other" so a scanner cannot inflate cardinality.
type HTTPMetrics struct {
	duration   metric.Float64Histogram
	inFlight   metric.Int64UpDownCounter
	deliveries metric.Int64Counter
}

func NewHTTPMetrics(cfg Config, provider metric.MeterProvider) (*HTTPMetrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "paybridge"
	}
	meter := provider.Meter(name + "/ingress")

	duration, err := meter.Float64Histogram("paybridge.ingress.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time spent serving an inbound request"),
	)
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("paybridge.ingress.in_flight",
		metric.WithDescription("Inbound requests currently being served"),
	)
	if err != nil {
		return nil, err
	}
	deliveries, err := meter.Int64Counter("paybridge.webhook.deliveries",
		metric.WithDescription("Webhook deliveries received, by processor and status class"),
	)
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{duration: duration, inFlight: inFlight, deliveries: deliveries}, nil
}

// GinMiddleware records duration and in-flight gauges per route. Requests
// carrying a :provider route parameter also count as webhook deliveries.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := c.Request.Context()
		routeAttr := metric.WithAttributes(attribute.String("route", route))
		m.inFlight.Add(ctx, 1, routeAttr)
		start := time.Now()
		c.Next()
		m.inFlight.Add(ctx, -1, routeAttr)

		processor, hasProcessor := c.Params.Get("provider")
		m.Record(ctx, route, c.Writer.Status(), time.Since(start), processor, hasProcessor)
	}
}

// Record stores one served request. processor is only used when isWebhook.
func (m *HTTPMetrics) Record(ctx context.Context, route string, status int, elapsed time.Duration, processor string, isWebhook bool) {
	if m == nil {
		return
	}
	class := StatusClass(status)
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("status_class", class),
	))
	if isWebhook {
		m.deliveries.Add(ctx, 1, metric.WithAttributes(
			attribute.String("processor", KnownProcessor(processor)),
			attribute.String("status_class", class),
		))
	}
}

// StatusClass buckets an HTTP status into 2xx, 4xx and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return string(rune('0'+status/100)) + "xx"
}

// KnownProcessor returns the canonical processor name, or "other".
func KnownProcessor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range domain.Providers() {
		if string(p) == name {
			return name
		}
	}
	return "other"
}
