package braintree

import (
	"context"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

func (a *Adapter) CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "create_subscription")
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "get_subscription")
}

func (a *Adapter) ListSubscriptions(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "list_subscriptions")
}

func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, input domain.UpdateSubscriptionInput) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "update_subscription")
}

func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "cancel_subscription")
}

func (a *Adapter) ResumeSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "resume_subscription")
}

func (a *Adapter) PauseSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "pause_subscription")
}

func (a *Adapter) SwapPlan(ctx context.Context, subscriptionID, newPriceID string, prorate bool) (*domain.Subscription, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "swap_plan")
}
