package proration

import (
	"context"
	"testing"
	"time"

	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSubscriber struct {
	mock.Mock
}

func (m *mockSubscriber) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*domain.Subscription)
	return sub, args.Error(1)
}

func (m *mockSubscriber) CancelSubscription(ctx context.Context, id string, immediate bool) (*domain.Subscription, error) {
	args := m.Called(ctx, id, immediate)
	sub, _ := args.Get(0).(*domain.Subscription)
	return sub, args.Error(1)
}

func (m *mockSubscriber) CreateSubscription(ctx context.Context, input domain.CreateSubscriptionInput) (*domain.Subscription, error) {
	args := m.Called(ctx, input)
	sub, _ := args.Get(0).(*domain.Subscription)
	return sub, args.Error(1)
}

func TestRemainingFraction(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	assert.InDelta(t, 0.5, RemainingFraction(start, end, start.Add(15*24*time.Hour)), 1e-9)
	assert.Equal(t, 0.0, RemainingFraction(start, end, end.Add(time.Hour)))
	assert.Equal(t, 1.0, RemainingFraction(start, end, start.Add(-time.Hour)))
	assert.Equal(t, 0.0, RemainingFraction(end, start, start))
}

func TestSwapCancelsAndRecreatesWithCredit(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	now := start.Add(10 * 24 * time.Hour)

	current := &domain.Subscription{
		ID:                 "sub_old",
		CustomerID:         "cus_1",
		Status:             domain.SubscriptionStatusActive,
		PriceID:            "plan_basic",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		Quantity:           1,
		Amount:             300000,
		Currency:           "idr",
		Metadata:           map[string]string{"team": "core"},
	}
	sub := &mockSubscriber{}
	sub.On("GetSubscription", mock.Anything, "sub_old").Return(current, nil)
	sub.On("CancelSubscription", mock.Anything, "sub_old", true).Return(&domain.Subscription{ID: "sub_old", Status: domain.SubscriptionStatusCanceled}, nil)
	sub.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(in domain.CreateSubscriptionInput) bool {
		return in.PriceID == "plan_pro" &&
			in.CustomerID == "cus_1" &&
			in.Metadata[MetadataSwappedFrom] == "sub_old" &&
			in.Metadata[MetadataFraction] == "0.666667" &&
			in.Metadata[MetadataCredit] == "200000" &&
			in.Metadata["team"] == "core"
	})).Return(&domain.Subscription{ID: "sub_new", PriceID: "plan_pro"}, nil)

	got, err := Swap(context.Background(), sub, clock.Fixed(now), "sub_old", "plan_pro", true)
	require.NoError(t, err)
	assert.Equal(t, "sub_new", got.ID)
	sub.AssertExpectations(t)
}

func TestSwapWithoutProrationOmitsCredit(t *testing.T) {
	current := &domain.Subscription{ID: "sub_old", CustomerID: "cus_1", Amount: 1000}
	sub := &mockSubscriber{}
	sub.On("GetSubscription", mock.Anything, "sub_old").Return(current, nil)
	sub.On("CancelSubscription", mock.Anything, "sub_old", true).Return(current, nil)
	sub.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(in domain.CreateSubscriptionInput) bool {
		_, hasCredit := in.Metadata[MetadataCredit]
		return !hasCredit && in.Metadata[MetadataSwappedFrom] == "sub_old" && in.Quantity == 1
	})).Return(&domain.Subscription{ID: "sub_new"}, nil)

	_, err := Swap(context.Background(), sub, clock.Fixed(time.Now()), "sub_old", "plan_pro", false)
	require.NoError(t, err)
	sub.AssertExpectations(t)
}

func TestSwapStopsWhenFetchFails(t *testing.T) {
	sub := &mockSubscriber{}
	sub.On("GetSubscription", mock.Anything, "sub_missing").Return(nil, domain.NewSubscriptionNotFoundError(domain.ProviderXendit, "not found"))

	_, err := Swap(context.Background(), sub, clock.SystemClock{}, "sub_missing", "plan_pro", true)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	sub.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything)
}
