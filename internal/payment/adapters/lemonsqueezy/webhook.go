package lemonsqueezy

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"go.uber.org/zap"
)

type webhookPayload struct {
	Meta struct {
		EventName  string         `json:"event_name"`
		WebhookID  string         `json:"webhook_id"`
		TestMode   bool           `json:"test_mode"`
		CustomData map[string]any `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string         `json:"type"`
		ID         flexibleID     `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body sent in
// X-Signature.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return webhook.VerifyHMACSHA256(payload, signature, secret)
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature != "" {
		if a.cfg.WebhookSecret == "" {
			return nil, domain.NewWebhookError(domain.ProviderLemonSqueezy, domain.CodeInvalidSignature, "webhook secret is not configured")
		}
		if !a.VerifySignature(payload, signature, a.cfg.WebhookSecret) {
			return nil, domain.NewWebhookError(domain.ProviderLemonSqueezy, domain.CodeInvalidSignature, "signature mismatch")
		}
	}

	var event webhookPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewWebhookError(domain.ProviderLemonSqueezy, domain.CodeInvalidPayload, "payload is not a json:api document")
	}
	eventType := strings.TrimSpace(event.Meta.EventName)
	if eventType == "" {
		return nil, domain.NewWebhookError(domain.ProviderLemonSqueezy, domain.CodeInvalidPayload, "meta.event_name is required")
	}

	data := make(map[string]any, len(event.Data.Attributes)+3)
	for k, v := range event.Data.Attributes {
		data[k] = v
	}
	data["id"] = event.Data.ID.String()
	data["type"] = event.Data.Type
	if len(event.Meta.CustomData) > 0 {
		data["custom_data"] = event.Meta.CustomData
	}

	id := strings.TrimSpace(event.Meta.WebhookID)
	if id == "" {
		id = "evt_" + a.ids.Generate().String()
	}

	a.log.Debug("lemonsqueezy event parsed",
		zap.String("event_id", id),
		zap.String("event_type", eventType),
		zap.Bool("test_mode", event.Meta.TestMode),
	)

	return &domain.WebhookEvent{
		ID:         id,
		Type:       eventType,
		Processor:  domain.ProviderLemonSqueezy,
		Data:       data,
		RawPayload: payload,
		ReceivedAt: a.clock.Now(ctx),
	}, nil
}

// CreateCheckout opens a hosted checkout for the first line item's variant.
// Metadata travels as custom data and returns on the resulting webhooks.
func (a *Adapter) CreateCheckout(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if len(input.LineItems) == 0 {
		return nil, domain.NewValidationError("line_items", "checkouts need a variant")
	}

	checkoutData := map[string]any{}
	if input.CustomerEmail != "" {
		checkoutData["email"] = input.CustomerEmail
	}
	custom := map[string]string{}
	for k, v := range input.Metadata {
		custom[k] = v
	}
	if input.CustomerID != "" {
		custom["customer_id"] = input.CustomerID
	}
	if len(custom) > 0 {
		checkoutData["custom"] = custom
	}
	if q := input.LineItems[0].Quantity; q > 1 {
		checkoutData["variant_quantities"] = []map[string]any{{"variant_id": toInt(input.LineItems[0].PriceID), "quantity": q}}
	}

	attrs := map[string]any{
		"checkout_data":   checkoutData,
		"product_options": map[string]any{"redirect_url": input.SuccessURL},
		"test_mode":       a.cfg.TestMode,
	}
	if input.Amount > 0 {
		attrs["custom_price"] = input.Amount
	}

	var out document[checkoutAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/checkouts",
		JSON: request{Data: requestData{
			Type:       "checkouts",
			Attributes: attrs,
			Relationships: map[string]relation{
				"store":   related("stores", a.cfg.StoreID),
				"variant": related("variants", input.LineItems[0].PriceID),
			},
		}},
	}, &out); err != nil {
		return nil, err
	}
	return &domain.CheckoutSession{
		ID:        out.Data.ID,
		Processor: domain.ProviderLemonSqueezy,
		URL:       out.Data.Attributes.URL,
		Status:    domain.CheckoutSessionStatusOpen,
		ExpiresAt: parseTime(out.Data.Attributes.ExpiresAt),
	}, nil
}
