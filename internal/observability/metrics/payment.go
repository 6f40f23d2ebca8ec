package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	ServiceName string
	Environment string
}

// PaymentMetrics records processor calls, retries, cache behavior and webhook
// outcomes. A nil *PaymentMetrics is valid and records nothing.
type PaymentMetrics struct {
	calls       *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	retries     *prometheus.CounterVec
	cache       *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

func NewPaymentMetrics(registerer prometheus.Registerer, cfg Config) (*PaymentMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "paybridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &PaymentMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "paybridge_processor_calls_total",
			Help:        "Processor operations by provider, operation and result.",
			ConstLabels: constLabels,
		}, []string{"provider", "operation", "result"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "paybridge_processor_call_duration_seconds",
			Help:        "Processor operation latency including retries.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"provider", "operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "paybridge_processor_errors_total",
			Help:        "Processor failures by error kind.",
			ConstLabels: constLabels,
		}, []string{"provider", "kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "paybridge_processor_retries_total",
			Help:        "Retries of network failures.",
			ConstLabels: constLabels,
		}, []string{"provider", "operation"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "paybridge_cache_lookups_total",
			Help:        "Orchestration cache lookups by key and result.",
			ConstLabels: constLabels,
		}, []string{"key", "result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "paybridge_webhooks_total",
			Help:        "Inbound webhooks by provider and outcome.",
			ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.calls, m.callLatency, m.errors, m.retries, m.cache, m.webhooks} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PaymentMetrics) ObserveCall(provider, operation string, err error, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
		if kind == "" {
			kind = "unknown"
		}
		m.errors.WithLabelValues(provider, kind).Inc()
	}
	m.calls.WithLabelValues(provider, operation, result).Inc()
	m.callLatency.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (m *PaymentMetrics) ObserveRetry(provider, operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider, operation).Inc()
}

func (m *PaymentMetrics) ObserveCache(key string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(key, result).Inc()
}

func (m *PaymentMetrics) ObserveWebhook(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(provider, outcome).Inc()
}
