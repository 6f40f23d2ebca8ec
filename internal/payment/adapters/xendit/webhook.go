package xendit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"go.uber.org/zap"
)

// xenditEvent covers both callback shapes: the enveloped
// {"event": ..., "data": {...}} and the flat invoice callback.
type xenditEvent struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Created string          `json:"created"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

// VerifySignature compares the X-Callback-Token against the configured
// token. Xendit does not sign the body.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return webhook.VerifyToken(signature, secret)
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	if signature != "" {
		if a.cfg.CallbackToken == "" {
			return nil, domain.NewWebhookError(domain.ProviderXendit, domain.CodeInvalidSignature, "callback token is not configured")
		}
		if !a.VerifySignature(payload, signature, a.cfg.CallbackToken) {
			return nil, domain.NewWebhookError(domain.ProviderXendit, domain.CodeInvalidSignature, "callback token mismatch")
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, domain.NewWebhookError(domain.ProviderXendit, domain.CodeInvalidPayload, "payload is not a json object")
	}
	var event xenditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewWebhookError(domain.ProviderXendit, domain.CodeInvalidPayload, "payload is not a xendit callback")
	}

	data := raw
	if nested, ok := raw["data"].(map[string]any); ok {
		data = nested
	}

	eventType := strings.ToLower(strings.TrimSpace(event.Event))
	if eventType == "" {
		status := strings.ToLower(strings.TrimSpace(event.Status))
		if status == "" {
			return nil, domain.NewWebhookError(domain.ProviderXendit, domain.CodeInvalidPayload, "callback carries neither event nor status")
		}
		eventType = "invoice." + status
	}

	id := strings.TrimSpace(event.ID)
	if id == "" {
		if nestedID, ok := data["id"].(string); ok {
			id = nestedID
		}
	}
	if id == "" {
		id = "evt_" + a.ids.Generate().String()
	}

	a.log.Debug("xendit callback parsed",
		zap.String("event_id", id),
		zap.String("event_type", eventType),
	)

	return &domain.WebhookEvent{
		ID:         id,
		Type:       eventType,
		Processor:  domain.ProviderXendit,
		Data:       data,
		RawPayload: payload,
		ReceivedAt: a.clock.Now(ctx),
	}, nil
}

type xenditInvoice struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date"`
}

// CreateCheckout creates a hosted invoice. Subscription mode is not offered
// by invoices.
func (a *Adapter) CreateCheckout(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.Mode == domain.CheckoutModeSubscription {
		return nil, domain.Unsupported(domain.ProviderXendit, "subscription_checkout")
	}
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "invoices need a positive amount")
	}

	currency := strings.ToUpper(a.cfg.currency(input.Currency))
	externalID := fmt.Sprintf("checkout-%s-%s", input.CustomerID, a.ids.Generate().String())
	body := map[string]any{
		"external_id":          externalID,
		"amount":               domain.ToMajor(input.Amount, currency),
		"currency":             currency,
		"success_redirect_url": input.SuccessURL,
		"description":          "Payment",
	}
	if input.CancelURL != "" {
		body["failure_redirect_url"] = input.CancelURL
	}
	if input.CustomerEmail != "" {
		body["payer_email"] = input.CustomerEmail
	}
	if len(input.Metadata) > 0 {
		body["metadata"] = input.Metadata
	}

	var invoice xenditInvoice
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/v2/invoices",
		JSON:           body,
		IdempotencyKey: externalID,
	}, &invoice); err != nil {
		return nil, err
	}
	return mapInvoice(invoice), nil
}

func mapInvoice(invoice xenditInvoice) *domain.CheckoutSession {
	status := domain.CheckoutSessionStatusOpen
	switch strings.ToUpper(invoice.Status) {
	case "PAID", "SETTLED":
		status = domain.CheckoutSessionStatusComplete
	case "EXPIRED":
		status = domain.CheckoutSessionStatusExpired
	}
	session := &domain.CheckoutSession{
		ID:        invoice.ID,
		Processor: domain.ProviderXendit,
		URL:       invoice.InvoiceURL,
		Status:    status,
	}
	if expiresAt := parseTime(invoice.ExpiryDate); !expiresAt.IsZero() {
		session.ExpiresAt = &expiresAt
	}
	return session
}
