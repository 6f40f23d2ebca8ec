package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

var refundReasons = map[string]struct{}{
	"duplicate":             {},
	"fraudulent":            {},
	"requested_by_customer": {},
}

// CreateCharge confirms an off-session PaymentIntent. The intent id is the
// canonical charge id.
func (a *Adapter) CreateCharge(ctx context.Context, input domain.CreateChargeInput) (*domain.Charge, error) {
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	currency := domain.NormalizeCurrency(input.Currency)
	if len(currency) != 3 {
		return nil, domain.NewValidationError("currency", "currency must be a three letter ISO code")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(input.Amount, 10))
	form.Set("currency", currency)
	if input.CustomerID != "" {
		form.Set("customer", input.CustomerID)
	}
	if input.PaymentMethodID != "" {
		form.Set("payment_method", input.PaymentMethodID)
		form.Set("confirm", "true")
		form.Set("off_session", "true")
	}
	if input.Description != "" {
		form.Set("description", input.Description)
	}
	setMetadata(form, "metadata", input.Metadata)
	form.Add("expand[]", "latest_charge")

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	var out stripePaymentIntent
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/v1/payment_intents",
		Form:           form,
		IdempotencyKey: key,
	}, &out); err != nil {
		return nil, err
	}
	return mapCharge(out), nil
}

func (a *Adapter) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	if chargeID == "" {
		return nil, domain.NewValidationError("charge_id", "charge id is required")
	}
	var out stripePaymentIntent
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/payment_intents/" + url.PathEscape(chargeID),
		Query:  url.Values{"expand[]": {"latest_charge"}},
	}, &out); err != nil {
		return nil, err
	}
	return mapCharge(out), nil
}

func (a *Adapter) ListCharges(ctx context.Context, customerID string) ([]*domain.Charge, error) {
	var list stripePaymentIntentList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/payment_intents",
		Query:  url.Values{"customer": {customerID}, "expand[]": {"data.latest_charge"}},
	}, &list); err != nil {
		return nil, err
	}
	out := make([]*domain.Charge, 0, len(list.Data))
	for _, pi := range list.Data {
		out = append(out, mapCharge(pi))
	}
	return out, nil
}

func (a *Adapter) RefundCharge(ctx context.Context, chargeID string, amount int64, reason string) (*domain.Charge, error) {
	charge, err := a.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	amount, err = charge.ResolveRefund(amount)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("payment_intent", chargeID)
	form.Set("amount", strconv.FormatInt(amount, 10))
	if _, ok := refundReasons[reason]; ok {
		form.Set("reason", reason)
	} else if reason != "" {
		form.Set("metadata[reason]", reason)
	}
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/v1/refunds",
		Form:           form,
		IdempotencyKey: uuid.NewString(),
	}, nil); err != nil {
		return nil, err
	}
	return a.GetCharge(ctx, chargeID)
}
