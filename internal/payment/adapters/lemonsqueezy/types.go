package lemonsqueezy

import (
	"time"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type customerAttributes struct {
	StoreID   flexibleID `json:"store_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	CreatedAt *string    `json:"created_at"`
	UpdatedAt *string    `json:"updated_at"`
}

type subscriptionAttributes struct {
	StoreID               flexibleID `json:"store_id"`
	CustomerID            flexibleID `json:"customer_id"`
	OrderID               flexibleID `json:"order_id"`
	ProductID             flexibleID `json:"product_id"`
	VariantID             flexibleID `json:"variant_id"`
	UserEmail             string     `json:"user_email"`
	Status                string     `json:"status"`
	Cancelled             bool       `json:"cancelled"`
	CardBrand             string     `json:"card_brand"`
	CardLastFour          string     `json:"card_last_four"`
	TrialEndsAt           *string    `json:"trial_ends_at"`
	RenewsAt              *string    `json:"renews_at"`
	EndsAt                *string    `json:"ends_at"`
	CreatedAt             *string    `json:"created_at"`
	UpdatedAt             *string    `json:"updated_at"`
	FirstSubscriptionItem *struct {
		ID       flexibleID `json:"id"`
		PriceID  flexibleID `json:"price_id"`
		Quantity int        `json:"quantity"`
	} `json:"first_subscription_item"`
}

type orderAttributes struct {
	StoreID        flexibleID `json:"store_id"`
	CustomerID     flexibleID `json:"customer_id"`
	Identifier     string     `json:"identifier"`
	OrderNumber    int64      `json:"order_number"`
	UserEmail      string     `json:"user_email"`
	Currency       string     `json:"currency"`
	Total          int64      `json:"total"`
	Status         string     `json:"status"`
	Refunded       bool       `json:"refunded"`
	RefundedAmount int64      `json:"refunded_amount"`
	CreatedAt      *string    `json:"created_at"`
}

type checkoutAttributes struct {
	URL       string  `json:"url"`
	ExpiresAt *string `json:"expires_at"`
}

var subscriptionStatuses = domain.StatusMap{
	"on_trial":  domain.SubscriptionStatusTrialing,
	"active":    domain.SubscriptionStatusActive,
	"paused":    domain.SubscriptionStatusPaused,
	"past_due":  domain.SubscriptionStatusPastDue,
	"unpaid":    domain.SubscriptionStatusPastDue,
	"cancelled": domain.SubscriptionStatusCanceled,
	"expired":   domain.SubscriptionStatusCanceled,
}

func mapCustomer(r resource[customerAttributes]) *domain.Customer {
	return &domain.Customer{
		ID:                  r.ID,
		Email:               r.Attributes.Email,
		Name:                r.Attributes.Name,
		Processor:           domain.ProviderLemonSqueezy,
		ProcessorCustomerID: r.ID,
		CreatedAt:           timeOrZero(r.Attributes.CreatedAt),
		UpdatedAt:           timeOrZero(r.Attributes.UpdatedAt),
	}
}

// mapSubscription treats a cancelled subscription still inside its grace
// period as active with a scheduled cancellation.
func mapSubscription(r resource[subscriptionAttributes], now time.Time) *domain.Subscription {
	attrs := r.Attributes
	out := &domain.Subscription{
		ID:                      r.ID,
		CustomerID:              attrs.CustomerID.String(),
		Status:                  subscriptionStatuses.Map(attrs.Status),
		PriceID:                 attrs.VariantID.String(),
		ProductID:               attrs.ProductID.String(),
		Quantity:                1,
		Processor:               domain.ProviderLemonSqueezy,
		ProcessorSubscriptionID: r.ID,
	}
	if item := attrs.FirstSubscriptionItem; item != nil && item.Quantity > 0 {
		out.Quantity = item.Quantity
	}

	created := timeOrZero(attrs.CreatedAt)
	endsAt := parseTime(attrs.EndsAt)
	if normalizeStatus(attrs.Status) == "cancelled" || attrs.Cancelled {
		if endsAt != nil && endsAt.After(now) {
			out.Status = domain.SubscriptionStatusActive
			out.CancelAtPeriodEnd = true
		} else {
			out.Status = domain.SubscriptionStatusCanceled
		}
		out.CanceledAt = parseTime(attrs.UpdatedAt)
	}

	end := timeOrZero(attrs.RenewsAt)
	if endsAt != nil {
		end = *endsAt
	}
	if trialEnd := parseTime(attrs.TrialEndsAt); trialEnd != nil && out.Status == domain.SubscriptionStatusTrialing {
		out.TrialStart = &created
		out.TrialEnd = trialEnd
		end = *trialEnd
	}
	start := created
	if !end.IsZero() {
		if prev := end.AddDate(0, -1, 0); prev.After(start) {
			start = prev
		}
		if !end.After(start) {
			end = start.AddDate(0, 1, 0)
		}
	}
	if out.TrialStart != nil {
		start = *out.TrialStart
	}
	out.CurrentPeriodStart, out.CurrentPeriodEnd = start, end
	return out
}

func mapPaymentMethod(r resource[subscriptionAttributes]) *domain.PaymentMethod {
	if r.Attributes.CardLastFour == "" {
		return nil
	}
	return &domain.PaymentMethod{
		ID:         "sub_" + r.ID,
		CustomerID: r.Attributes.CustomerID.String(),
		Type:       domain.PaymentMethodTypeCard,
		Last4:      r.Attributes.CardLastFour,
		Brand:      r.Attributes.CardBrand,
		Processor:  domain.ProviderLemonSqueezy,
	}
}

func mapOrder(r resource[orderAttributes]) *domain.Charge {
	attrs := r.Attributes
	out := &domain.Charge{
		ID:                r.ID,
		CustomerID:        attrs.CustomerID.String(),
		Amount:            attrs.Total,
		Currency:          domain.NormalizeCurrency(attrs.Currency),
		RefundedAmount:    attrs.RefundedAmount,
		Processor:         domain.ProviderLemonSqueezy,
		ProcessorChargeID: r.ID,
		CreatedAt:         timeOrZero(attrs.CreatedAt),
		Metadata:          map[string]string{"identifier": attrs.Identifier},
	}
	if out.RefundedAmount > out.Amount {
		out.RefundedAmount = out.Amount
	}
	switch normalizeStatus(attrs.Status) {
	case "paid", "partial_refund":
		out.Status = domain.ChargeStatusSucceeded
	case "refunded":
		out.Status = domain.ChargeStatusRefunded
	case "failed":
		out.Status = domain.ChargeStatusFailed
	default:
		out.Status = domain.ChargeStatusPending
	}
	if attrs.Refunded && out.RefundedAmount == 0 {
		out.RefundedAmount = out.Amount
	}
	if out.Amount > 0 && out.RefundedAmount >= out.Amount {
		out.Refunded = true
		out.Status = domain.ChargeStatusRefunded
	}
	return out
}
