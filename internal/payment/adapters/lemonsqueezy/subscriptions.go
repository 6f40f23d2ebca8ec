package lemonsqueezy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

func (a *Adapter) CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	return nil, domain.Unsupported(domain.ProviderLemonSqueezy, "create_subscription")
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	raw, err := a.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return mapSubscription(*raw, a.clock.Now(ctx)), nil
}

func (a *Adapter) fetchSubscription(ctx context.Context, subscriptionID string) (*resource[subscriptionAttributes], error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, domain.NewValidationError("subscription_id", "subscription id is required")
	}
	var out document[subscriptionAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/subscriptions/" + url.PathEscape(subscriptionID),
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewSubscriptionNotFoundError(domain.ProviderLemonSqueezy, "subscription "+subscriptionID+" not found"))
	}
	return &out.Data, nil
}

func (a *Adapter) ListSubscriptions(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	subs, err := a.customerSubscriptions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now(ctx)
	out := make([]*domain.Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, mapSubscription(s, now))
	}
	return out, nil
}

// customerSubscriptions filters the store's subscriptions by the customer's
// email and keeps those owned by the customer id.
func (a *Adapter) customerSubscriptions(ctx context.Context, customerID string) ([]resource[subscriptionAttributes], error) {
	customer, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	all, err := list[subscriptionAttributes](ctx, a.client, "/v1/subscriptions", url.Values{
		"filter[store_id]":   {a.cfg.StoreID},
		"filter[user_email]": {customer.Attributes.Email},
	})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.Attributes.CustomerID.String() == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpdateSubscription changes the variant without proration or the quantity
// of the first subscription item. Subscriptions carry no metadata.
func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, input domain.UpdateSubscriptionInput) (*domain.Subscription, error) {
	if len(input.Metadata) > 0 {
		return nil, domain.Unsupported(domain.ProviderLemonSqueezy, "subscription_metadata")
	}
	if input.Quantity != nil {
		if *input.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "quantity must be positive")
		}
		current, err := a.fetchSubscription(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		item := current.Attributes.FirstSubscriptionItem
		if item == nil || item.ID == "" {
			return nil, domain.NewProcessorError(domain.ProviderLemonSqueezy, "subscription_without_items", "subscription has no items")
		}
		if err := a.client.Do(ctx, transport.Request{
			Method: http.MethodPatch,
			Path:   "/v1/subscription-items/" + url.PathEscape(item.ID.String()),
			JSON: request{Data: requestData{
				Type:       "subscription-items",
				ID:         item.ID.String(),
				Attributes: map[string]any{"quantity": *input.Quantity},
			}},
		}, nil); err != nil {
			return nil, err
		}
	}
	if input.PriceID != nil {
		return a.patchSubscription(ctx, subscriptionID, map[string]any{
			"variant_id":         toInt(*input.PriceID),
			"disable_prorations": true,
		})
	}
	return a.GetSubscription(ctx, subscriptionID)
}

// CancelSubscription schedules the cancellation for the period end, the only
// cancellation the API offers.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error) {
	if immediate {
		return nil, domain.Unsupported(domain.ProviderLemonSqueezy, "cancel_immediately")
	}
	var out document[subscriptionAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/v1/subscriptions/" + url.PathEscape(subscriptionID),
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewSubscriptionNotFoundError(domain.ProviderLemonSqueezy, "subscription "+subscriptionID+" not found"))
	}
	return mapSubscription(out.Data, a.clock.Now(ctx)), nil
}

// ResumeSubscription lifts a pending cancellation and any pause.
func (a *Adapter) ResumeSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	current, err := a.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if normalizeStatus(current.Attributes.Status) == "expired" {
		return nil, domain.NewValidationError("subscription_id", "an expired subscription cannot be resumed")
	}
	return a.patchSubscription(ctx, subscriptionID, map[string]any{
		"cancelled": false,
		"pause":     nil,
	})
}

func (a *Adapter) PauseSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return a.patchSubscription(ctx, subscriptionID, map[string]any{
		"pause": map[string]any{"mode": "void"},
	})
}

func (a *Adapter) SwapPlan(ctx context.Context, subscriptionID, newPriceID string, prorate bool) (*domain.Subscription, error) {
	if newPriceID == "" {
		return nil, domain.NewValidationError("price_id", "new price is required")
	}
	return a.patchSubscription(ctx, subscriptionID, map[string]any{
		"variant_id":          toInt(newPriceID),
		"disable_prorations":  !prorate,
		"invoice_immediately": prorate,
	})
}

func (a *Adapter) patchSubscription(ctx context.Context, subscriptionID string, attrs map[string]any) (*domain.Subscription, error) {
	var out document[subscriptionAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   "/v1/subscriptions/" + url.PathEscape(subscriptionID),
		JSON:   request{Data: requestData{Type: "subscriptions", ID: subscriptionID, Attributes: attrs}},
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewSubscriptionNotFoundError(domain.ProviderLemonSqueezy, "subscription "+subscriptionID+" not found"))
	}
	return mapSubscription(out.Data, a.clock.Now(ctx)), nil
}
