package service

import (
	"context"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type SubscribeInput struct {
	PriceID string
	// PaymentMethodToken, when set, is attached as the default before the
	// subscription is created.
	PaymentMethodToken string
	TrialDays          int
	Quantity           int
	Amount             int64
	Currency           string
	Metadata           map[string]string
}

func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*domain.Subscription, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.PriceID) == "" {
		return nil, domain.NewValidationError("price_id", "price id is required")
	}
	if in.TrialDays < 0 {
		return nil, domain.NewValidationError("trial_days", "trial days must not be negative")
	}
	if in.TrialDays > 0 && !s.processor.Capabilities().SupportsTrialPeriods {
		return nil, domain.Unsupported(s.processor.Provider(), "trial periods")
	}

	paymentMethodID := ""
	if in.PaymentMethodToken != "" {
		method, err := s.AddPaymentMethod(ctx, in.PaymentMethodToken, true)
		if err != nil {
			return nil, err
		}
		paymentMethodID = method.ID
	}

	sub, err := call(ctx, s, "create_subscription", func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.CreateSubscription(ctx, domain.CreateSubscriptionInput{
			CustomerID:      customerID,
			PriceID:         in.PriceID,
			PaymentMethodID: paymentMethodID,
			TrialDays:       in.TrialDays,
			Quantity:        in.Quantity,
			Amount:          in.Amount,
			Currency:        in.Currency,
			Metadata:        in.Metadata,
		})
	})
	s.invalidate(ctx, KeySubscriptions)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Subscriptions lists the customer's subscriptions that are not canceled.
func (s *Service) Subscriptions(ctx context.Context) ([]*domain.Subscription, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.activeSubscriptions(ctx, customerID)
}

func (s *Service) activeSubscriptions(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	if subs, ok := cached[[]*domain.Subscription](ctx, s, KeySubscriptions); ok {
		return subs, nil
	}
	all, err := call(ctx, s, "list_subscriptions", func(ctx context.Context) ([]*domain.Subscription, error) {
		return s.processor.ListSubscriptions(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Subscription, 0, len(all))
	for _, sub := range all {
		if sub != nil && sub.Status != domain.SubscriptionStatusCanceled {
			active = append(active, sub)
		}
	}
	s.store(ctx, KeySubscriptions, active)
	return active, nil
}

func (s *Service) Subscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	if _, err := s.customerID(ctx); err != nil {
		return nil, err
	}
	if err := requireID("subscription_id", subscriptionID); err != nil {
		return nil, err
	}
	return call(ctx, s, "get_subscription", func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.GetSubscription(ctx, subscriptionID)
	})
}

func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error) {
	return s.mutateSubscription(ctx, "cancel_subscription", subscriptionID, func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.CancelSubscription(ctx, subscriptionID, immediate)
	})
}

func (s *Service) ResumeSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return s.mutateSubscription(ctx, "resume_subscription", subscriptionID, func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.ResumeSubscription(ctx, subscriptionID)
	})
}

func (s *Service) PauseSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return s.mutateSubscription(ctx, "pause_subscription", subscriptionID, func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.PauseSubscription(ctx, subscriptionID)
	})
}

// ChangePlan moves a subscription to another price. Processors without plan
// swapping get a plain update, which never prorates.
func (s *Service) ChangePlan(ctx context.Context, subscriptionID, priceID string, prorate bool) (*domain.Subscription, error) {
	if err := requireID("price_id", priceID); err != nil {
		return nil, err
	}
	if s.processor.Capabilities().SupportsPlanSwapping {
		return s.mutateSubscription(ctx, "swap_plan", subscriptionID, func(ctx context.Context) (*domain.Subscription, error) {
			return s.processor.SwapPlan(ctx, subscriptionID, priceID, prorate)
		})
	}
	return s.mutateSubscription(ctx, "update_subscription", subscriptionID, func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.UpdateSubscription(ctx, subscriptionID, domain.UpdateSubscriptionInput{PriceID: &priceID})
	})
}

func (s *Service) UpdateSubscription(ctx context.Context, subscriptionID string, in domain.UpdateSubscriptionInput) (*domain.Subscription, error) {
	return s.mutateSubscription(ctx, "update_subscription", subscriptionID, func(ctx context.Context) (*domain.Subscription, error) {
		return s.processor.UpdateSubscription(ctx, subscriptionID, in)
	})
}

func (s *Service) mutateSubscription(ctx context.Context, operation, subscriptionID string, fn func(ctx context.Context) (*domain.Subscription, error)) (*domain.Subscription, error) {
	if _, err := s.customerID(ctx); err != nil {
		return nil, err
	}
	if err := requireID("subscription_id", subscriptionID); err != nil {
		return nil, err
	}
	sub, err := call(ctx, s, operation, fn)
	s.invalidate(ctx, KeySubscriptions)
	return sub, err
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError(field, strings.ReplaceAll(field, "_", " ")+" is required")
	}
	return nil
}
