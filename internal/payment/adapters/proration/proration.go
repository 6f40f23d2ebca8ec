// Package proration implements plan swaps for processors that cannot change
// the price of a running subscription.
package proration

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

const (
	MetadataSwappedFrom = "swapped_from"
	MetadataFraction    = "proration_fraction"
	MetadataCredit      = "proration_credit"
)

// Subscriber is the part of a processor the fallback swap drives.
type Subscriber interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediate bool) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error)
}

// RemainingFraction is the unused share of the current period at now, in
// [0, 1]. A degenerate period yields zero.
func RemainingFraction(start, end, now time.Time) float64 {
	total := end.Sub(start).Seconds()
	if total <= 0 {
		return 0
	}
	remaining := math.Max(0, end.Sub(now).Seconds())
	return math.Min(1, remaining/total)
}

// Credit is the estimated unused value of amount, rounded to the nearest
// minor unit. It is an approximation for the caller to reconcile.
func Credit(amount int64, fraction float64) int64 {
	return int64(math.Round(float64(amount) * fraction))
}

// Swap cancels the current subscription immediately and opens a new one on
// newPriceID. The new subscription carries the original id and the estimated
// credit in its metadata. With prorate false no credit is computed.
func Swap(ctx context.Context, s Subscriber, c clock.Clock, subscriptionID, newPriceID string, prorate bool) (*domain.Subscription, error) {
	if newPriceID == "" {
		return nil, domain.NewValidationError("price_id", "new price is required")
	}
	current, err := s.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(current.Metadata)+3)
	for k, v := range current.Metadata {
		metadata[k] = v
	}
	metadata[MetadataSwappedFrom] = current.ID

	if prorate {
		fraction := RemainingFraction(current.CurrentPeriodStart, current.CurrentPeriodEnd, c.Now(ctx))
		metadata[MetadataFraction] = strconv.FormatFloat(fraction, 'f', 6, 64)
		metadata[MetadataCredit] = strconv.FormatInt(Credit(current.Amount, fraction), 10)
	}

	if _, err := s.CancelSubscription(ctx, current.ID, true); err != nil {
		return nil, err
	}

	quantity := current.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	return s.CreateSubscription(ctx, domain.CreateSubscriptionInput{
		CustomerID: current.CustomerID,
		PriceID:    newPriceID,
		Quantity:   quantity,
		Amount:     current.Amount,
		Currency:   current.Currency,
		Metadata:   metadata,
	})
}
