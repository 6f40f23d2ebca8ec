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

func (a *Adapter) CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	if input.CustomerID == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	if input.PriceID == "" {
		return nil, domain.NewValidationError("price_id", "price id is required")
	}
	if input.TrialDays < 0 {
		return nil, domain.NewValidationError("trial_days", "trial days must not be negative")
	}

	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	form := url.Values{}
	form.Set("customer", input.CustomerID)
	form.Set("items[0][price]", input.PriceID)
	form.Set("items[0][quantity]", strconv.Itoa(quantity))
	if input.PaymentMethodID != "" {
		form.Set("default_payment_method", input.PaymentMethodID)
	}
	if input.TrialDays > 0 {
		form.Set("trial_period_days", strconv.Itoa(input.TrialDays))
	}
	setMetadata(form, "metadata", input.Metadata)

	return a.postSubscription(ctx, "/v1/subscriptions", form, uuid.NewString())
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	raw, err := a.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return mapSubscription(*raw), nil
}

func (a *Adapter) ListSubscriptions(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	var list stripeSubscriptionList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/subscriptions",
		Query:  url.Values{"customer": {customerID}, "status": {"all"}},
	}, &list); err != nil {
		return nil, err
	}
	out := make([]*domain.Subscription, 0, len(list.Data))
	for _, s := range list.Data {
		out = append(out, mapSubscription(s))
	}
	return out, nil
}

func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, input domain.UpdateSubscriptionInput) (*domain.Subscription, error) {
	form := url.Values{}
	if input.PriceID != nil || input.Quantity != nil {
		current, err := a.fetchSubscription(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		if len(current.Items.Data) == 0 {
			return nil, domain.NewProcessorError(domain.ProviderStripe, "subscription_without_items", "subscription has no items")
		}
		form.Set("items[0][id]", current.Items.Data[0].ID)
		if input.PriceID != nil {
			form.Set("items[0][price]", *input.PriceID)
		}
		if input.Quantity != nil {
			if *input.Quantity <= 0 {
				return nil, domain.NewValidationError("quantity", "quantity must be positive")
			}
			form.Set("items[0][quantity]", strconv.Itoa(*input.Quantity))
		}
		form.Set("proration_behavior", "none")
	}
	setMetadata(form, "metadata", input.Metadata)
	return a.postSubscription(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), form, "")
}

func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error) {
	if immediate {
		var out stripeSubscription
		if err := a.client.Do(ctx, transport.Request{
			Method: http.MethodDelete,
			Path:   "/v1/subscriptions/" + url.PathEscape(subscriptionID),
		}, &out); err != nil {
			return nil, err
		}
		return mapSubscription(out), nil
	}
	return a.postSubscription(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID),
		url.Values{"cancel_at_period_end": {"true"}}, "")
}

// ResumeSubscription clears both a scheduled cancellation and paused
// collection.
func (a *Adapter) ResumeSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	current, err := a.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if subscriptionStatuses.Map(current.Status) == domain.SubscriptionStatusCanceled {
		return nil, domain.NewValidationError("subscription_id", "a canceled subscription cannot be resumed")
	}
	form := url.Values{"cancel_at_period_end": {"false"}}
	if current.PauseCollection != nil {
		form.Set("pause_collection", "")
	}
	return a.postSubscription(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), form, "")
}

func (a *Adapter) PauseSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return a.postSubscription(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID),
		url.Values{"pause_collection[behavior]": {"void"}}, "")
}

func (a *Adapter) SwapPlan(ctx context.Context, subscriptionID, newPriceID string, prorate bool) (*domain.Subscription, error) {
	if newPriceID == "" {
		return nil, domain.NewValidationError("price_id", "new price is required")
	}
	current, err := a.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(current.Items.Data) == 0 {
		return nil, domain.NewProcessorError(domain.ProviderStripe, "subscription_without_items", "subscription has no items")
	}
	behavior := "none"
	if prorate {
		behavior = "create_prorations"
	}
	form := url.Values{}
	form.Set("items[0][id]", current.Items.Data[0].ID)
	form.Set("items[0][price]", newPriceID)
	form.Set("proration_behavior", behavior)
	return a.postSubscription(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), form, "")
}

func (a *Adapter) fetchSubscription(ctx context.Context, subscriptionID string) (*stripeSubscription, error) {
	if subscriptionID == "" {
		return nil, domain.NewValidationError("subscription_id", "subscription id is required")
	}
	var out stripeSubscription
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/subscriptions/" + url.PathEscape(subscriptionID),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Adapter) postSubscription(ctx context.Context, path string, form url.Values, idempotencyKey string) (*domain.Subscription, error) {
	var out stripeSubscription
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           path,
		Form:           form,
		IdempotencyKey: idempotencyKey,
	}, &out); err != nil {
		return nil, err
	}
	return mapSubscription(out), nil
}
