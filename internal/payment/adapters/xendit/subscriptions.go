package xendit

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/proration"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

// CreateSubscription opens a monthly recurring plan. Plans are amount based;
// the price id only travels in metadata.
func (a *Adapter) CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	if input.TrialDays > 0 {
		return nil, domain.Unsupported(domain.ProviderXendit, "trial_periods")
	}
	if input.CustomerID == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "recurring plans need a positive amount")
	}

	paymentMethodID := input.PaymentMethodID
	if paymentMethodID == "" {
		customer, err := a.fetchCustomer(ctx, input.CustomerID)
		if err != nil {
			return nil, err
		}
		paymentMethodID = customer.Metadata[metadataDefaultPaymentMethod]
	}
	if paymentMethodID == "" {
		return nil, domain.NewValidationError("payment_method_id", "a payment method is required for recurring plans")
	}

	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	metadata := mergeMetadata(input.Metadata, map[string]string{
		metadataPriceID:  input.PriceID,
		metadataQuantity: strconv.Itoa(quantity),
	})

	currency := strings.ToUpper(a.cfg.currency(input.Currency))
	amount := domain.ToMajor(input.Amount, currency)
	reference := uuid.NewString()
	body := xenditPlanRequest{
		ReferenceID:     reference,
		CustomerID:      input.CustomerID,
		RecurringAction: "PAYMENT",
		Currency:        currency,
		Amount:          &amount,
		Schedule: &xenditSchedule{
			ReferenceID:   reference,
			Interval:      "MONTH",
			IntervalCount: 1,
		},
		PaymentMethods:      []xenditPlanPaymentMethod{{PaymentMethodID: paymentMethodID, Rank: 1}},
		ImmediateActionType: "FULL_AMOUNT",
		Metadata:            metadata,
	}

	var out xenditPlan
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/recurring/plans",
		JSON:           body,
		IdempotencyKey: reference,
	}, &out); err != nil {
		return nil, err
	}
	return mapPlan(out, a.clock.Now(ctx)), nil
}

func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, domain.NewValidationError("subscription_id", "subscription id is required")
	}
	var out xenditPlan
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/recurring/plans/" + url.PathEscape(subscriptionID),
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewSubscriptionNotFoundError(domain.ProviderXendit, "recurring plan "+subscriptionID+" not found"))
	}
	return mapPlan(out, a.clock.Now(ctx)), nil
}

func (a *Adapter) ListSubscriptions(ctx context.Context, customerID string) ([]*domain.Subscription, error) {
	var list xenditPlanList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/recurring/plans",
		Query:  url.Values{"customer_id": {customerID}},
	}, &list); err != nil {
		return nil, err
	}
	now := a.clock.Now(ctx)
	out := make([]*domain.Subscription, 0, len(list.Data))
	for _, p := range list.Data {
		out = append(out, mapPlan(p, now))
	}
	return out, nil
}

// UpdateSubscription rescales the amount on a quantity change. A price change
// needs a new plan and goes through the swap fallback without proration.
func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, input domain.UpdateSubscriptionInput) (*domain.Subscription, error) {
	if input.PriceID != nil {
		sub, err := proration.Swap(ctx, a, a.clock, subscriptionID, *input.PriceID, false)
		if err != nil {
			return nil, err
		}
		if input.Quantity == nil && len(input.Metadata) == 0 {
			return sub, nil
		}
		subscriptionID = sub.ID
	}

	current, err := a.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	body := xenditPlanRequest{}
	metadata := map[string]string{}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	if input.Quantity != nil {
		if *input.Quantity <= 0 {
			return nil, domain.NewValidationError("quantity", "quantity must be positive")
		}
		unit := current.Amount / int64(current.Quantity)
		amount := domain.ToMajor(unit*int64(*input.Quantity), current.Currency)
		body.Amount = &amount
		body.Currency = strings.ToUpper(current.Currency)
		metadata[metadataQuantity] = strconv.Itoa(*input.Quantity)
	}
	if len(metadata) > 0 {
		body.Metadata = mergeMetadata(current.Metadata, metadata)
	}

	var out xenditPlan
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   "/recurring/plans/" + url.PathEscape(subscriptionID),
		JSON:   body,
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewSubscriptionNotFoundError(domain.ProviderXendit, "recurring plan "+subscriptionID+" not found"))
	}
	return mapPlan(out, a.clock.Now(ctx)), nil
}

// CancelSubscription deactivates the plan. Recurring plans cannot be
// scheduled to end with the period.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error) {
	if !immediate {
		return nil, domain.Unsupported(domain.ProviderXendit, "cancel_at_period_end")
	}
	var out xenditPlan
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/recurring/plans/" + url.PathEscape(subscriptionID) + "/deactivate",
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewSubscriptionNotFoundError(domain.ProviderXendit, "recurring plan "+subscriptionID+" not found"))
	}
	sub := mapPlan(out, a.clock.Now(ctx))
	if sub.CanceledAt == nil {
		now := a.clock.Now(ctx)
		sub.CanceledAt = &now
	}
	return sub, nil
}

func (a *Adapter) ResumeSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return nil, domain.Unsupported(domain.ProviderXendit, "resume_subscription")
}

func (a *Adapter) PauseSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return nil, domain.Unsupported(domain.ProviderXendit, "pause_subscription")
}

// SwapPlan replaces the plan: the old one is deactivated and a new one is
// created carrying the estimated credit in metadata.
func (a *Adapter) SwapPlan(ctx context.Context, subscriptionID, newPriceID string, prorate bool) (*domain.Subscription, error) {
	sub, err := proration.Swap(ctx, a, a.clock, subscriptionID, newPriceID, prorate)
	if err != nil {
		return nil, err
	}
	a.log.Info("recurring plan swapped",
		zap.String("from", subscriptionID),
		zap.String("to", sub.ID),
		zap.String("price_id", newPriceID),
	)
	return sub, nil
}
