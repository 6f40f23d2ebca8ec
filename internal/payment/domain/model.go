package domain

import (
	"time"
)

// Provider identifies the payment processor backing an adapter.
type Provider string

const (
	ProviderStripe       Provider = "stripe"
	ProviderXendit       Provider = "xendit"
	ProviderPaddle       Provider = "paddle"
	ProviderLemonSqueezy Provider = "lemonsqueezy"
	ProviderBraintree    Provider = "braintree"
)

func (p Provider) String() string { return string(p) }

// Providers lists every provider with an adapter.
func Providers() []Provider {
	return []Provider{
		ProviderStripe,
		ProviderXendit,
		ProviderPaddle,
		ProviderLemonSqueezy,
		ProviderBraintree,
	}
}

type PaymentMethodType string

const (
	PaymentMethodTypeCard        PaymentMethodType = "card"
	PaymentMethodTypeBankAccount PaymentMethodType = "bank_account"
	PaymentMethodTypePayPal      PaymentMethodType = "paypal"
	PaymentMethodTypeWallet      PaymentMethodType = "wallet"
)

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
	ChargeStatusRefunded  ChargeStatus = "refunded"
)

// Customer is the canonical customer record. ProcessorCustomerID is stable for
// the lifetime of the record.
type Customer struct {
	ID                  string            `json:"id"`
	Email               string            `json:"email"`
	Name                string            `json:"name,omitempty"`
	Phone               string            `json:"phone,omitempty"`
	Processor           Provider          `json:"processor"`
	ProcessorCustomerID string            `json:"processor_customer_id"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

type BillingDetails struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// PaymentMethod is a tokenized payment instrument. Raw card data never reaches
// this type.
type PaymentMethod struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id"`
	Type           PaymentMethodType `json:"type"`
	Last4          string            `json:"last4,omitempty"`
	Brand          string            `json:"brand,omitempty"`
	ExpMonth       int               `json:"exp_month,omitempty"`
	ExpYear        int               `json:"exp_year,omitempty"`
	IsDefault      bool              `json:"is_default"`
	BillingDetails *BillingDetails   `json:"billing_details,omitempty"`
	Processor      Provider          `json:"processor"`
}

type Subscription struct {
	ID                      string             `json:"id"`
	CustomerID              string             `json:"customer_id"`
	Status                  SubscriptionStatus `json:"status"`
	PriceID                 string             `json:"price_id"`
	ProductID               string             `json:"product_id,omitempty"`
	CurrentPeriodStart      time.Time          `json:"current_period_start"`
	CurrentPeriodEnd        time.Time          `json:"current_period_end"`
	TrialStart              *time.Time         `json:"trial_start,omitempty"`
	TrialEnd                *time.Time         `json:"trial_end,omitempty"`
	CanceledAt              *time.Time         `json:"canceled_at,omitempty"`
	CancelAtPeriodEnd       bool               `json:"cancel_at_period_end"`
	Quantity                int                `json:"quantity"`
	Amount                  int64              `json:"amount,omitempty"`
	Currency                string             `json:"currency,omitempty"`
	Processor               Provider           `json:"processor"`
	ProcessorSubscriptionID string             `json:"processor_subscription_id"`
	Metadata                map[string]string  `json:"metadata,omitempty"`
}

// IsLive reports whether the subscription still grants access.
func (s *Subscription) IsLive() bool {
	if s == nil {
		return false
	}
	return s.Status != SubscriptionStatusCanceled && s.Status != SubscriptionStatusIncomplete
}

// Validate checks the period invariants of a mapped subscription.
func (s *Subscription) Validate() error {
	if s == nil {
		return NewValidationError("subscription", "subscription is required")
	}
	if s.CurrentPeriodStart.IsZero() || s.CurrentPeriodEnd.IsZero() {
		return nil
	}
	if !s.CurrentPeriodEnd.After(s.CurrentPeriodStart) {
		return NewValidationError("current_period_end", "current period end must be after its start")
	}
	if s.TrialEnd != nil {
		if s.TrialEnd.Before(s.CurrentPeriodStart) || s.TrialEnd.After(s.CurrentPeriodEnd) {
			return NewValidationError("trial_end", "trial end must fall within the current period")
		}
	}
	return nil
}

type Charge struct {
	ID                string            `json:"id"`
	CustomerID        string            `json:"customer_id"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Status            ChargeStatus      `json:"status"`
	Refunded          bool              `json:"refunded"`
	RefundedAmount    int64             `json:"refunded_amount"`
	Description       string            `json:"description,omitempty"`
	Processor         Provider          `json:"processor"`
	ProcessorChargeID string            `json:"processor_charge_id"`
	CreatedAt         time.Time         `json:"created_at"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// RefundableAmount is what is left to refund on the charge.
func (c *Charge) RefundableAmount() int64 {
	if c == nil {
		return 0
	}
	remaining := c.Amount - c.RefundedAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResolveRefund checks a refund request against what is left on the charge.
// Zero requests the whole remainder.
func (c *Charge) ResolveRefund(requested int64) (int64, error) {
	if requested < 0 {
		return 0, NewValidationError("amount", "refund amount must not be negative")
	}
	remaining := c.RefundableAmount()
	if remaining == 0 {
		return 0, NewValidationError("amount", "charge has nothing left to refund")
	}
	if requested == 0 {
		return remaining, nil
	}
	if requested > remaining {
		return 0, NewValidationError("amount", "refund exceeds the refundable amount")
	}
	return requested, nil
}

// WebhookEvent carries a verified inbound notification. Type keeps the
// provider-native event name.
type WebhookEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Processor  Provider       `json:"processor"`
	Data       map[string]any `json:"data"`
	RawPayload []byte         `json:"-"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Capabilities lists the optional operations a processor supports. Callers
// check these before invoking trial, swap or proration paths.
type Capabilities struct {
	SupportsTrialPeriods bool `json:"supports_trial_periods"`
	SupportsPlanSwapping bool `json:"supports_plan_swapping"`
	SupportsProration    bool `json:"supports_proration"`
}
