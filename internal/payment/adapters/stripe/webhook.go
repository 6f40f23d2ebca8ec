package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"go.uber.org/zap"
)

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return webhook.VerifyTimestampedHMAC(payload, signature, secret)
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature != "" {
		if a.cfg.WebhookSecret == "" {
			return nil, domain.NewWebhookError(domain.ProviderStripe, domain.CodeInvalidSignature, "webhook secret is not configured")
		}
		if !a.VerifySignature(payload, signature, a.cfg.WebhookSecret) {
			return nil, domain.NewWebhookError(domain.ProviderStripe, domain.CodeInvalidSignature, "signature mismatch")
		}
		if a.cfg.WebhookTolerance > 0 {
			sig, _ := webhook.ParseTimestampedSignature(signature)
			signedAt, err := sig.Time()
			if err != nil || a.clock.Now(ctx).Sub(signedAt) > a.cfg.WebhookTolerance {
				return nil, domain.NewWebhookError(domain.ProviderStripe, domain.CodeInvalidSignature, "signature timestamp outside tolerance")
			}
		}
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewWebhookError(domain.ProviderStripe, domain.CodeInvalidPayload, "payload is not a stripe event")
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, domain.NewWebhookError(domain.ProviderStripe, domain.CodeInvalidPayload, "event id and type are required")
	}

	data := map[string]any{}
	if len(event.Data.Object) > 0 {
		var object map[string]any
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, domain.NewWebhookError(domain.ProviderStripe, domain.CodeInvalidPayload, "event object is not a json object")
		}
		data = object
	}

	a.log.Debug("stripe event parsed",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)

	return &domain.WebhookEvent{
		ID:         event.ID,
		Type:       event.Type,
		Processor:  domain.ProviderStripe,
		Data:       data,
		RawPayload: payload,
		ReceivedAt: a.clock.Now(ctx),
	}, nil
}

// CreateCheckout opens a hosted Checkout Session.
func (a *Adapter) CreateCheckout(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	mode := input.Mode
	if mode == "" {
		mode = domain.CheckoutModePayment
	}
	data := url.Values{}
	data.Set("mode", string(mode))
	data.Set("success_url", input.SuccessURL)
	if input.CancelURL != "" {
		data.Set("cancel_url", input.CancelURL)
	}
	if len(input.LineItems) > 0 {
		for i, item := range input.LineItems {
			quantity := item.Quantity
			if quantity <= 0 {
				quantity = 1
			}
			prefix := "line_items[" + strconv.Itoa(i) + "]"
			data.Set(prefix+"[price]", item.PriceID)
			data.Set(prefix+"[quantity]", strconv.Itoa(quantity))
		}
	} else {
		data.Set("line_items[0][price_data][currency]", domain.NormalizeCurrency(input.Currency))
		data.Set("line_items[0][price_data][product_data][name]", "Payment")
		data.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(input.Amount, 10))
		data.Set("line_items[0][quantity]", "1")
	}
	if input.CustomerID != "" {
		data.Set("customer", input.CustomerID)
	} else if input.CustomerEmail != "" {
		data.Set("customer_email", input.CustomerEmail)
	}
	setMetadata(data, "metadata", input.Metadata)

	var session struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		Status    string `json:"status"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/checkout/sessions",
		Form:   data,
	}, &session); err != nil {
		return nil, err
	}

	status := domain.CheckoutSessionStatusOpen
	switch session.Status {
	case "complete":
		status = domain.CheckoutSessionStatusComplete
	case "expired":
		status = domain.CheckoutSessionStatusExpired
	}
	return &domain.CheckoutSession{
		ID:        session.ID,
		Processor: domain.ProviderStripe,
		URL:       session.URL,
		Status:    status,
		ExpiresAt: unixTimePtr(session.ExpiresAt),
	}, nil
}
