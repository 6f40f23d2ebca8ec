package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"go.uber.org/zap"
)

// PaymentProcessor is the provider-neutral contract every adapter satisfies.
// Implementations are safe for concurrent use; the only shared state is the
// HTTP client and the credentials supplied at construction.
type PaymentProcessor interface {
	Provider() Provider
	Capabilities() Capabilities
	// SignatureHeader names the inbound header carrying the webhook signature.
	SignatureHeader() string

	// Customers
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, input UpdateCustomerInput) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error

	// Payment method management
	AddPaymentMethod(ctx context.Context, customerID, token string, setDefault bool) (*PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]*PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*PaymentMethod, error)
	RemovePaymentMethod(ctx context.Context, paymentMethodID string) error

	// Subscriptions
	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, input UpdateSubscriptionInput) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*Subscription, error)
	ResumeSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	PauseSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	SwapPlan(ctx context.Context, subscriptionID, newPriceID string, prorate bool) (*Subscription, error)

	// One-time charges
	CreateCharge(ctx context.Context, input CreateChargeInput) (*Charge, error)
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)
	ListCharges(ctx context.Context, customerID string) ([]*Charge, error)
	// RefundCharge refunds amount minor units; zero refunds whatever remains.
	RefundCharge(ctx context.Context, chargeID string, amount int64, reason string) (*Charge, error)

	// Webhook handling
	VerifySignature(payload []byte, signature, secret string) bool
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutCreator is implemented by processors that can hand out a hosted
// checkout URL.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutSession, error)
}

type CreateCustomerInput struct {
	Email    string
	Name     string
	Phone    string
	Metadata map[string]string
}

// UpdateCustomerInput leaves nil fields untouched.
type UpdateCustomerInput struct {
	Email    *string
	Name     *string
	Phone    *string
	Metadata map[string]string
}

type CreateSubscriptionInput struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	TrialDays       int
	Quantity        int
	Amount          int64
	Currency        string
	Metadata        map[string]string
}

type UpdateSubscriptionInput struct {
	PriceID  *string
	Quantity *int
	Metadata map[string]string
}

type CreateChargeInput struct {
	CustomerID      string
	Amount          int64
	Currency        string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
	// IdempotencyKey is generated when empty.
	IdempotencyKey string
}

// AdapterConfig is everything an AdapterFactory needs to build an adapter.
// Settings holds the provider's own typed configuration.
type AdapterConfig struct {
	Provider    Provider
	Settings    any
	BaseURL     string
	HTTPTimeout time.Duration
	HTTPClient  *http.Client
	Log         *zap.Logger
	Clock       clock.Clock
	IDs         *snowflake.Node
}

type AdapterFactory interface {
	Provider() Provider
	NewAdapter(config AdapterConfig) (PaymentProcessor, error)
}
