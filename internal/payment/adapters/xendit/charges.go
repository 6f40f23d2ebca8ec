package xendit

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

var refundReasons = map[string]string{
	"duplicate":             "DUPLICATE",
	"fraudulent":            "FRAUDULENT",
	"requested_by_customer": "REQUESTED_BY_CUSTOMER",
	"cancellation":          "CANCELLATION",
}

// CreateCharge creates an automatic-capture payment request against a saved
// payment method. A synchronous decline surfaces as a payment method error.
func (a *Adapter) CreateCharge(ctx context.Context, input domain.CreateChargeInput) (*domain.Charge, error) {
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	currency := strings.ToUpper(a.cfg.currency(input.Currency))
	if len(currency) != 3 {
		return nil, domain.NewValidationError("currency", "currency must be a three letter ISO code")
	}

	paymentMethodID := input.PaymentMethodID
	if paymentMethodID == "" && input.CustomerID != "" {
		customer, err := a.fetchCustomer(ctx, input.CustomerID)
		if err != nil {
			return nil, err
		}
		paymentMethodID = customer.Metadata[metadataDefaultPaymentMethod]
	}
	if paymentMethodID == "" {
		return nil, domain.NewValidationError("payment_method_id", "payment method is required")
	}

	key := input.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	body := map[string]any{
		"reference_id":      key,
		"amount":            domain.ToMajor(input.Amount, currency),
		"currency":          currency,
		"payment_method_id": paymentMethodID,
		"capture_method":    "AUTOMATIC",
	}
	if input.CustomerID != "" {
		body["customer_id"] = input.CustomerID
	}
	if input.Description != "" {
		body["description"] = input.Description
	}
	if len(input.Metadata) > 0 {
		body["metadata"] = input.Metadata
	}

	var out xenditPaymentRequest
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/payment_requests",
		JSON:           body,
		IdempotencyKey: key,
	}, &out); err != nil {
		return nil, err
	}
	if strings.EqualFold(out.Status, "FAILED") && transport.IsDeclineCode(out.FailureCode) {
		return nil, domain.NewPaymentMethodError(domain.ProviderXendit, strings.ToLower(out.FailureCode), "payment was declined")
	}
	return mapCharge(out, 0), nil
}

func (a *Adapter) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, domain.NewValidationError("charge_id", "charge id is required")
	}
	var out xenditPaymentRequest
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/payment_requests/" + url.PathEscape(chargeID),
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewChargeNotFoundError(domain.ProviderXendit, "payment request "+chargeID+" not found"))
	}
	refunded, err := a.refundedAmount(ctx, out)
	if err != nil {
		return nil, err
	}
	return mapCharge(out, refunded), nil
}

func (a *Adapter) ListCharges(ctx context.Context, customerID string) ([]*domain.Charge, error) {
	var list xenditPaymentRequestList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/payment_requests",
		Query:  url.Values{"customer_id": {customerID}},
	}, &list); err != nil {
		return nil, err
	}
	out := make([]*domain.Charge, 0, len(list.Data))
	for _, pr := range list.Data {
		refunded, err := a.refundedAmount(ctx, pr)
		if err != nil {
			return nil, err
		}
		out = append(out, mapCharge(pr, refunded))
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

	body := map[string]any{
		"payment_request_id": chargeID,
		"amount":             domain.ToMajor(amount, charge.Currency),
		"currency":           strings.ToUpper(charge.Currency),
		"reason":             "OTHERS",
	}
	if mapped, ok := refundReasons[reason]; ok {
		body["reason"] = mapped
	} else if reason != "" {
		body["metadata"] = map[string]string{"reason": reason}
	}
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/refunds",
		JSON:           body,
		IdempotencyKey: uuid.NewString(),
	}, nil); err != nil {
		return nil, err
	}
	return a.GetCharge(ctx, chargeID)
}

// refundedAmount sums the refunds that are settled or still in flight.
func (a *Adapter) refundedAmount(ctx context.Context, pr xenditPaymentRequest) (int64, error) {
	if !strings.EqualFold(pr.Status, "SUCCEEDED") {
		return 0, nil
	}
	var list xenditRefundList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/refunds",
		Query:  url.Values{"payment_request_id": {pr.ID}},
	}, &list); err != nil {
		return 0, err
	}
	var total int64
	for _, r := range list.Data {
		switch strings.ToUpper(r.Status) {
		case "SUCCEEDED", "PENDING":
			total += domain.FromMajor(r.Amount, pr.Currency)
		}
	}
	return total, nil
}
