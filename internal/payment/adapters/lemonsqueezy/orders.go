package lemonsqueezy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// Orders are the charge entity. They are only created by checkouts.

func (a *Adapter) CreateCharge(ctx context.Context, input domain.CreateChargeInput) (*domain.Charge, error) {
	return nil, domain.Unsupported(domain.ProviderLemonSqueezy, "create_charge")
}

func (a *Adapter) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, domain.NewValidationError("charge_id", "charge id is required")
	}
	var out document[orderAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/orders/" + url.PathEscape(chargeID),
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewChargeNotFoundError(domain.ProviderLemonSqueezy, "order "+chargeID+" not found"))
	}
	return mapOrder(out.Data), nil
}

func (a *Adapter) ListCharges(ctx context.Context, customerID string) ([]*domain.Charge, error) {
	customer, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	orders, err := list[orderAttributes](ctx, a.client, "/v1/orders", url.Values{
		"filter[store_id]":   {a.cfg.StoreID},
		"filter[user_email]": {customer.Attributes.Email},
	})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Charge, 0, len(orders))
	for _, o := range orders {
		if o.Attributes.CustomerID.String() != customerID {
			continue
		}
		out = append(out, mapOrder(o))
	}
	return out, nil
}

// RefundCharge refunds part or all of an order. The reason is not sent;
// the API takes none.
func (a *Adapter) RefundCharge(ctx context.Context, chargeID string, amount int64, reason string) (*domain.Charge, error) {
	charge, err := a.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	amount, err = charge.ResolveRefund(amount)
	if err != nil {
		return nil, err
	}

	var out document[orderAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/orders/" + url.PathEscape(chargeID) + "/refund",
		JSON: request{Data: requestData{
			Type:       "orders",
			ID:         chargeID,
			Attributes: map[string]any{"amount": amount},
		}},
	}, &out); err != nil {
		return nil, err
	}
	return mapOrder(out.Data), nil
}
