package paddle

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type oneOffCharge struct {
	InvoiceID      int64   `json:"invoice_id"`
	SubscriptionID int64   `json:"subscription_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PaymentDate    string  `json:"payment_date"`
	ReceiptURL     string  `json:"receipt_url"`
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
}

// CreateCharge bills a one-off amount against the customer's live
// subscription, the only way Paddle Classic charges a saved card.
func (a *Adapter) CreateCharge(ctx context.Context, input domain.CreateChargeInput) (*domain.Charge, error) {
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	users, err := a.customerUsers(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	var target *paddleUser
	for i := range users {
		if subscriptionStatuses.Map(users[i].State) != domain.SubscriptionStatusCanceled {
			target = &users[i]
			break
		}
	}
	if target == nil {
		return nil, domain.NewPaymentMethodError(domain.ProviderPaddle, "no_billable_subscription", "customer has no live subscription to charge")
	}

	currency := domain.NormalizeCurrency(input.Currency)
	if currency == "" && target.NextPayment != nil {
		currency = domain.NormalizeCurrency(target.NextPayment.Currency)
	}
	name := input.Description
	if name == "" {
		name = "One-off charge"
	}
	subscriptionID := strconv.FormatInt(target.SubscriptionID, 10)

	var out oneOffCharge
	if err := a.call(ctx, "/2.0/subscription/"+url.PathEscape(subscriptionID)+"/charge", url.Values{
		"amount":      {domain.ToMajorString(input.Amount, currency)},
		"charge_name": {name},
	}, &out); err != nil {
		return nil, err
	}

	id := out.OrderID
	if id == "" {
		id = strconv.FormatInt(out.InvoiceID, 10)
	}
	status := domain.ChargeStatusPending
	if strings.EqualFold(out.Status, "success") {
		status = domain.ChargeStatusSucceeded
	}
	chargeCurrency := domain.NormalizeCurrency(out.Currency)
	if chargeCurrency == "" {
		chargeCurrency = currency
	}
	metadata := map[string]string{"subscription_id": subscriptionID}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	if out.ReceiptURL != "" {
		metadata["receipt_url"] = out.ReceiptURL
	}
	return &domain.Charge{
		ID:                id,
		CustomerID:        input.CustomerID,
		Amount:            domain.FromMajor(out.Amount, chargeCurrency),
		Currency:          chargeCurrency,
		Status:            status,
		Description:       name,
		Processor:         domain.ProviderPaddle,
		ProcessorChargeID: id,
		CreatedAt:         parseDateTime(out.PaymentDate),
		Metadata:          metadata,
	}, nil
}

func (a *Adapter) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	return nil, domain.Unsupported(domain.ProviderPaddle, "get_charge")
}

// ListCharges collects subscription payments for every subscription the
// customer holds.
func (a *Adapter) ListCharges(ctx context.Context, customerID string) ([]*domain.Charge, error) {
	users, err := a.customerUsers(ctx, customerID)
	if err != nil {
		return nil, err
	}
	var out []*domain.Charge
	for _, u := range users {
		var payments []paddleSubscriptionPayment
		if err := a.call(ctx, "/2.0/subscription/payments", url.Values{
			"subscription_id": {strconv.FormatInt(u.SubscriptionID, 10)},
		}, &payments); err != nil {
			return nil, err
		}
		for _, p := range payments {
			out = append(out, mapPayment(p, customerID))
		}
	}
	if out == nil {
		out = []*domain.Charge{}
	}
	return out, nil
}

type refundResponse struct {
	RefundRequestID int64 `json:"refund_request_id"`
}

// RefundCharge requests a refund of an order. A zero amount refunds the
// whole order. Paddle rejects amounts above what remains refundable, so that
// check happens at the processor.
func (a *Adapter) RefundCharge(ctx context.Context, chargeID string, amount int64, reason string) (*domain.Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, domain.NewValidationError("charge_id", "order id is required")
	}
	if amount < 0 {
		return nil, domain.NewValidationError("amount", "refund amount must not be negative")
	}
	currency := a.cfg.refundCurrency()
	form := url.Values{"order_id": {chargeID}}
	if amount > 0 {
		form.Set("amount", domain.ToMajorString(amount, currency))
	}
	if reason != "" {
		form.Set("reason", reason)
	}

	var out refundResponse
	if err := a.call(ctx, "/2.0/payment/refund", form, &out); err != nil {
		return nil, err
	}
	metadata := map[string]string{"refund_request_id": strconv.FormatInt(out.RefundRequestID, 10)}
	if reason != "" {
		metadata["refund_reason"] = reason
	}
	charge := &domain.Charge{
		ID:                chargeID,
		Currency:          currency,
		Status:            domain.ChargeStatusRefunded,
		Refunded:          amount == 0,
		RefundedAmount:    amount,
		Processor:         domain.ProviderPaddle,
		ProcessorChargeID: chargeID,
		CreatedAt:         a.clock.Now(ctx),
		Metadata:          metadata,
	}
	if amount > 0 {
		charge.Status = domain.ChargeStatusSucceeded
	}
	return charge, nil
}
