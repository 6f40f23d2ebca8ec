package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/observability/logger"
	"github.com/railzwaylabs/paybridge/internal/observability/metrics"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CodeUnknownProvider is returned when a webhook is addressed to a provider
// other than the configured processor.
const CodeUnknownProvider = "unknown_provider"

// Secret is the webhook signing secret of the configured processor: the
// Stripe endpoint secret, the Xendit callback token, the Paddle public key,
// the Lemon Squeezy or Braintree signing secret.
type Secret string

type Params struct {
	fx.In

	Log       *zap.Logger
	Processor domain.PaymentProcessor
	Secret    Secret
	Metrics   *metrics.PaymentMetrics `optional:"true"`
}

// Service verifies and parses inbound webhooks. Events are returned to the
// caller and never stored.
type Service struct {
	log       *zap.Logger
	processor domain.PaymentProcessor
	secret    string
	metrics   *metrics.PaymentMetrics
}

func NewService(p Params) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:       log.Named("payment.webhook"),
		processor: p.Processor,
		secret:    string(p.Secret),
		metrics:   p.Metrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*domain.WebhookEvent, error) {
	p := domain.Provider(strings.ToLower(strings.TrimSpace(provider)))
	if p == "" || s.processor == nil || s.processor.Provider() != p {
		s.metrics.ObserveWebhook(string(p), "unknown_provider")
		return nil, domain.NewWebhookError(p, CodeUnknownProvider, "no processor is configured for provider "+string(p))
	}
	log := logger.WithTrace(ctx, s.log).With(zap.String("provider", string(p)))

	if strings.TrimSpace(s.secret) == "" {
		s.metrics.ObserveWebhook(string(p), "invalid_signature")
		log.Error("webhook secret is not configured")
		return nil, domain.NewWebhookError(p, domain.CodeInvalidSignature, "webhook secret is not configured")
	}

	var signature string
	if header := s.processor.SignatureHeader(); header != "" {
		signature = strings.TrimSpace(headers.Get(header))
		if signature == "" {
			s.metrics.ObserveWebhook(string(p), "invalid_signature")
			log.Warn("webhook signature header missing", zap.String("header", header))
			return nil, domain.NewWebhookError(p, domain.CodeInvalidSignature, "missing "+header+" header")
		}
	}

	log.Debug("processing webhook",
		zap.Int("payload_size", len(payload)),
		zap.Any("headers", logger.MaskHeaders(headers)),
		zap.Any("payload", maskPayload(payload)),
	)

	if !s.processor.VerifySignature(payload, signature, s.secret) {
		s.metrics.ObserveWebhook(string(p), "invalid_signature")
		log.Warn("webhook signature rejected", zap.Int("payload_size", len(payload)))
		return nil, domain.NewWebhookError(p, domain.CodeInvalidSignature, "signature mismatch")
	}

	event, err := s.processor.ParseWebhook(ctx, payload, signature)
	if err != nil {
		outcome := "invalid_payload"
		if errors.Is(err, domain.ErrInvalidSignature) {
			outcome = "invalid_signature"
		}
		s.metrics.ObserveWebhook(string(p), outcome)
		log.Error("webhook processing failed", zap.Error(err), zap.Int("payload_size", len(payload)))
		return nil, err
	}

	s.metrics.ObserveWebhook(string(p), "accepted")
	log.Info("webhook accepted",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	return event, nil
}

// maskPayload returns a loggable copy of a JSON or form payload.
func maskPayload(raw []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		fields, ferr := ParseFields(raw)
		if ferr != nil {
			return nil
		}
		obj = make(map[string]any, len(fields))
		for k, v := range fields {
			obj[k] = v
		}
	}
	maskMap(obj)
	return logger.MaskJSON(obj)
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "billing_details", "shipping_details", "payment_method_details", "card_information", "credit_card":
			m[k] = "***"
		default:
			if nested, ok := v.(map[string]any); ok {
				maskMap(nested)
			} else if arr, ok := v.([]any); ok {
				for _, item := range arr {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
