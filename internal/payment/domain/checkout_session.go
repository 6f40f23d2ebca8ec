package domain

import (
	"time"
)

type CheckoutSessionStatus string

const (
	CheckoutSessionStatusOpen     CheckoutSessionStatus = "open"
	CheckoutSessionStatusComplete CheckoutSessionStatus = "complete"
	CheckoutSessionStatusExpired  CheckoutSessionStatus = "expired"
)

// CheckoutSession is a hosted checkout returned by a processor. Redirect-only
// providers start subscriptions through it.
type CheckoutSession struct {
	ID        string                `json:"id"`
	Processor Provider              `json:"processor"`
	URL       string                `json:"url"`
	Status    CheckoutSessionStatus `json:"status"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
}

// LineItemInput is a single price line on a checkout.
type LineItemInput struct {
	PriceID  string `json:"price"`
	Quantity int    `json:"quantity"`
}

type CheckoutInput struct {
	CustomerID    string            `json:"customer_id"`
	CustomerEmail string            `json:"customer_email"`
	Mode          CheckoutMode      `json:"mode"`
	LineItems     []LineItemInput   `json:"line_items"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Metadata      map[string]string `json:"metadata"`
}

type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// Validate checks the fields every processor needs before any request.
func (in CheckoutInput) Validate() error {
	if in.SuccessURL == "" {
		return NewValidationError("success_url", "success url is required")
	}
	switch in.Mode {
	case CheckoutModeSubscription:
		if len(in.LineItems) == 0 {
			return NewValidationError("line_items", "at least one line item is required")
		}
	case CheckoutModePayment, "":
		if len(in.LineItems) == 0 && in.Amount <= 0 {
			return NewValidationError("amount", "amount or line items are required")
		}
	default:
		return NewValidationError("mode", "unknown checkout mode")
	}
	for _, item := range in.LineItems {
		if item.PriceID == "" {
			return NewValidationError("line_items.price", "price is required")
		}
		if item.Quantity < 0 {
			return NewValidationError("line_items.quantity", "quantity must not be negative")
		}
	}
	return nil
}
