package paddle

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"go.uber.org/zap"
)

const signatureField = webhook.PaddleSignatureField

// VerifySignature checks a Paddle alert: the form fields without
// p_signature, sorted and HMAC-SHA256 signed with secret. signature may be
// empty when the body carries p_signature itself.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	fields, err := webhook.ParseFields(payload)
	if err != nil {
		return false
	}
	return webhook.VerifySortedFields(fields, signatureField, signature, secret)
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	fields, err := webhook.ParseFields(payload)
	if err != nil {
		return nil, domain.NewWebhookError(domain.ProviderPaddle, domain.CodeInvalidPayload, "alert is neither form-encoded nor json")
	}

	if signature != "" || fields[signatureField] != "" {
		if a.cfg.PublicKey == "" {
			return nil, domain.NewWebhookError(domain.ProviderPaddle, domain.CodeInvalidSignature, "webhook key is not configured")
		}
		if !webhook.VerifySortedFields(fields, signatureField, signature, a.cfg.PublicKey) {
			return nil, domain.NewWebhookError(domain.ProviderPaddle, domain.CodeInvalidSignature, "signature mismatch")
		}
	}

	eventType := strings.TrimSpace(fields["alert_name"])
	if eventType == "" {
		return nil, domain.NewWebhookError(domain.ProviderPaddle, domain.CodeInvalidPayload, "alert_name is required")
	}
	id := strings.TrimSpace(fields["alert_id"])
	if id == "" {
		id = "alert_" + a.ids.Generate().String()
	}

	data := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == signatureField {
			continue
		}
		data[k] = v
	}

	a.log.Debug("paddle alert parsed",
		zap.String("event_id", id),
		zap.String("event_type", eventType),
	)

	return &domain.WebhookEvent{
		ID:         id,
		Type:       eventType,
		Processor:  domain.ProviderPaddle,
		Data:       data,
		RawPayload: payload,
		ReceivedAt: a.clock.Now(ctx),
	}, nil
}

// CreateCheckout generates a pay link. The first line item names the
// product; an amount-only checkout sets a custom price instead.
func (a *Adapter) CreateCheckout(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("return_url", input.SuccessURL)
	if len(input.LineItems) > 0 {
		item := input.LineItems[0]
		form.Set("product_id", item.PriceID)
		if item.Quantity > 0 {
			form.Set("quantity", strconv.Itoa(item.Quantity))
		}
	} else {
		currency := strings.ToUpper(domain.NormalizeCurrency(input.Currency))
		form.Set("title", "Payment")
		form.Add("prices[]", currency+":"+domain.ToMajorString(input.Amount, currency))
	}
	if input.CustomerEmail != "" {
		form.Set("customer_email", input.CustomerEmail)
	} else if strings.Contains(input.CustomerID, "@") {
		form.Set("customer_email", input.CustomerID)
	}
	if passthrough := encodePassthrough(input.Metadata); passthrough != "" {
		form.Set("passthrough", passthrough)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := a.call(ctx, "/2.0/product/generate_pay_link", form, &out); err != nil {
		return nil, err
	}
	return &domain.CheckoutSession{
		ID:        "paylink_" + a.ids.Generate().String(),
		Processor: domain.ProviderPaddle,
		URL:       out.URL,
		Status:    domain.CheckoutSessionStatusOpen,
	}, nil
}
