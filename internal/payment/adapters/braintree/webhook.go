package braintree

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
)

type webhookPayload struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Timestamp string         `json:"timestamp"`
	Subject   map[string]any `json:"subject"`
}

// VerifySignature checks the hex HMAC-SHA256 of the body sent in
// X-Braintree-Signature.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return webhook.VerifyHMACSHA256(payload, signature, secret)
}

// ParseWebhook decodes a notification. Subscription notifications get a
// canonical_status next to the native one.
func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature != "" {
		if a.cfg.WebhookSecret == "" {
			return nil, domain.NewWebhookError(domain.ProviderBraintree, domain.CodeInvalidSignature, "webhook secret is not configured")
		}
		if !a.VerifySignature(payload, signature, a.cfg.WebhookSecret) {
			return nil, domain.NewWebhookError(domain.ProviderBraintree, domain.CodeInvalidSignature, "signature mismatch")
		}
	}

	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewWebhookError(domain.ProviderBraintree, domain.CodeInvalidPayload, "payload is not valid json")
	}
	kind := strings.TrimSpace(event.Kind)
	if kind == "" {
		return nil, domain.NewWebhookError(domain.ProviderBraintree, domain.CodeInvalidPayload, "kind is required")
	}

	data := event.Subject
	if data == nil {
		data = map[string]any{}
	}
	if sub, ok := data["subscription"].(map[string]any); ok {
		if status, ok := sub["status"].(string); ok {
			sub["canonical_status"] = string(subscriptionStatuses.Map(status))
		}
	}
	if event.Timestamp != "" {
		data["timestamp"] = event.Timestamp
	}

	id := strings.TrimSpace(event.ID)
	if id == "" {
		id = "evt_" + a.ids.Generate().String()
	}
	return &domain.WebhookEvent{
		ID:         id,
		Type:       kind,
		Processor:  domain.ProviderBraintree,
		Data:       data,
		RawPayload: payload,
		ReceivedAt: a.clock.Now(ctx),
	}, nil
}
