package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/railzwaylabs/paybridge/internal/observability/logger"
	"github.com/railzwaylabs/paybridge/internal/observability/metrics"
	"github.com/railzwaylabs/paybridge/internal/observability/tracing"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Storage keys. Values are JSON except the id and email entries.
const (
	KeyCustomerID           = "paybridge.customer_id"
	KeyCustomerEmail        = "paybridge.customer_email"
	KeyCustomer             = "paybridge.customer"
	KeySubscriptions        = "paybridge.subscriptions"
	KeyDefaultPaymentMethod = "paybridge.default_payment_method"
)

// RetryConfig controls retries of network failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" json:"base_delay"`
}

// DefaultRetryConfig retries three times in total, waiting 2s then 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

type Params struct {
	fx.In

	Processor domain.PaymentProcessor
	Storage   domain.Storage
	Log       *zap.Logger             `optional:"true"`
	Metrics   *metrics.PaymentMetrics `optional:"true"`
	Retry     RetryConfig             `optional:"true"`
}

// Service binds one processor to one cached customer. Instances share no
// state; each wraps its own processor and storage.
type Service struct {
	processor domain.PaymentProcessor
	storage   domain.Storage
	log       *zap.Logger
	metrics   *metrics.PaymentMetrics
	retry     RetryConfig
	tracer    trace.Tracer
}

func New(p Params) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	retry := p.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	return &Service{
		processor: p.Processor,
		storage:   p.Storage,
		log:       log.Named("payment.service"),
		metrics:   p.Metrics,
		retry:     retry,
		tracer:    tracing.Tracer("paybridge/payment"),
	}
}

func (s *Service) Provider() domain.Provider { return s.processor.Provider() }

func (s *Service) Capabilities() domain.Capabilities { return s.processor.Capabilities() }

// Reset forgets the cached customer and everything cached for it.
func (s *Service) Reset(ctx context.Context) error {
	return s.storage.Clear(ctx)
}

// customerID enforces the initialization guard.
func (s *Service) customerID(ctx context.Context) (string, error) {
	id, ok, err := s.storage.Get(ctx, KeyCustomerID)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(id) == "" {
		return "", domain.NewPaymentError(domain.CodeNotInitialized, "payment service is not initialized; call Initialize first")
	}
	return id, nil
}

// call runs fn inside a span, retrying network failures with exponential
// backoff. Any other failure is returned on first occurrence.
func call[T any](ctx context.Context, s *Service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	provider := string(s.processor.Provider())
	ctx, span := tracing.StartProcessorCall(ctx, s.tracer, provider, operation)
	defer span.End()
	log := logger.WithTrace(ctx, s.log)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = s.retry.BaseDelay << uint(s.retry.MaxAttempts)

	start := time.Now()
	attempt := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !domain.IsRetryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.retry.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.metrics.ObserveRetry(provider, operation)
			log.Warn("retrying processor call after network failure",
				zap.String("provider", provider),
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)

	kind := domain.KindOf(err)
	s.metrics.ObserveCall(provider, operation, err, string(kind), time.Since(start))
	tracing.EndProcessorCall(span, attempt, string(kind), err)
	if err != nil {
		log.Debug("processor call failed",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	return result, err
}

// cached reads a JSON entry. Decoding failures count as misses.
func cached[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var out T
	raw, ok, err := s.storage.Get(ctx, key)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.ObserveCache(key, false)
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		s.metrics.ObserveCache(key, false)
		return out, false
	}
	s.metrics.ObserveCache(key, true)
	return out, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, key, string(raw)); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}
