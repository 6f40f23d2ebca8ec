package paddle

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// CreateSubscription is not available: Paddle subscriptions begin with a
// pay link checkout.
func (a *Adapter) CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	return nil, domain.Unsupported(domain.ProviderPaddle, "create_subscription")
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	u, err := a.fetchUser(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return mapSubscription(*u, ""), nil
}

func (a *Adapter) fetchUser(ctx context.Context, subscriptionID string) (*paddleUser, error) {
	if _, err := strconv.ParseInt(strings.TrimSpace(subscriptionID), 10, 64); err != nil {
		return nil, domain.NewValidationError("subscription_id", "paddle subscription ids are numeric")
	}
	users, err := a.listUsers(ctx, url.Values{"subscription_id": {subscriptionID}})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, domain.NewSubscriptionNotFoundError(domain.ProviderPaddle, "subscription "+subscriptionID+" not found")
	}
	return &users[0], nil
}

func (a *Adapter) ListSubscriptions(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	users, err := a.customerUsers(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Subscription, 0, len(users))
	for _, u := range users {
		out = append(out, mapSubscription(u, customerID))
	}
	return out, nil
}

func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, input domain.UpdateSubscriptionInput) (*domain.Subscription, error) {
	form := url.Values{}
	if input.PriceID != nil {
		form.Set("plan_id", *input.PriceID)
	}
	if input.Quantity != nil {
		if *input.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "quantity must be positive")
		}
		form.Set("quantity", strconv.Itoa(*input.Quantity))
	}
	if len(input.Metadata) > 0 {
		current, err := a.fetchUser(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		merged := decodePassthrough(current.Passthrough)
		if merged == nil {
			merged = map[string]string{}
		}
		for k, v := range input.Metadata {
			merged[k] = v
		}
		form.Set("passthrough", encodePassthrough(merged))
	}
	form.Set("prorate", "false")
	form.Set("bill_immediately", "false")
	return a.updateUser(ctx, subscriptionID, form)
}

// CancelSubscription ends the subscription now. Paddle Classic cannot
// schedule a cancellation for the period end through the API.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error) {
	if !immediate {
		return nil, domain.Unsupported(domain.ProviderPaddle, "cancel_at_period_end")
	}
	current, err := a.fetchUser(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := a.call(ctx, "/2.0/subscription/users_cancel", url.Values{"subscription_id": {subscriptionID}}, nil); err != nil {
		return nil, err
	}
	current.State = "deleted"
	sub := mapSubscription(*current, "")
	now := a.clock.Now(ctx)
	sub.CanceledAt = &now
	return sub, nil
}

func (a *Adapter) ResumeSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	current, err := a.fetchUser(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if subscriptionStatuses.Map(current.State) == domain.SubscriptionStatusCanceled {
		return nil, domain.NewValidationError("subscription_id", "a canceled subscription cannot be resumed")
	}
	return a.updateUser(ctx, subscriptionID, url.Values{"pause": {"false"}})
}

func (a *Adapter) PauseSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return a.updateUser(ctx, subscriptionID, url.Values{"pause": {"true"}})
}

func (a *Adapter) SwapPlan(ctx context.Context, subscriptionID, newPriceID string, prorate bool) (*domain.Subscription, error) {
	if newPriceID == "" {
		return nil, domain.NewValidationError("price_id", "new price is required")
	}
	return a.updateUser(ctx, subscriptionID, url.Values{
		"plan_id":          {newPriceID},
		"prorate":          {strconv.FormatBool(prorate)},
		"bill_immediately": {strconv.FormatBool(prorate)},
	})
}

// updateUser applies form to the subscription and returns the refreshed
// record; the update endpoint answers with a partial object.
func (a *Adapter) updateUser(ctx context.Context, subscriptionID string, form url.Values) (*domain.Subscription, error) {
	if _, err := strconv.ParseInt(strings.TrimSpace(subscriptionID), 10, 64); err != nil {
		return nil, domain.NewValidationError("subscription_id", "paddle subscription ids are numeric")
	}
	form.Set("subscription_id", subscriptionID)
	if err := a.call(ctx, "/2.0/subscription/users/update", form, nil); err != nil {
		return nil, err
	}
	return a.GetSubscription(ctx, subscriptionID)
}
