package lemonsqueezy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	processor, err := NewFactory().NewAdapter(domain.AdapterConfig{
		Provider:   domain.ProviderLemonSqueezy,
		Settings:   Config{APIKey: "ls-key", StoreID: "42", WebhookSecret: "ls-secret"},
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Log:        zap.NewNop(),
		Clock:      clock.Fixed(testNow),
	})
	require.NoError(t, err)
	return processor.(*Adapter)
}

func writeDoc(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", contentType)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func subscriptionResource(id, status string, attrs map[string]any) map[string]any {
	base := map[string]any{
		"store_id":       42,
		"customer_id":    7,
		"product_id":     100,
		"variant_id":     200,
		"user_email":     "ann@example.com",
		"status":         status,
		"card_brand":     "visa",
		"card_last_four": "4242",
		"created_at":     "2025-01-10T00:00:00Z",
		"updated_at":     "2025-06-15T00:00:00Z",
		"renews_at":      "2025-07-10T00:00:00Z",
		"first_subscription_item": map[string]any{
			"id": 900, "price_id": 300, "quantity": 1,
		},
	}
	for k, v := range attrs {
		base[k] = v
	}
	return map[string]any{"type": "subscriptions", "id": id, "attributes": base}
}

func TestCreateCustomerSendsJSONAPIDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ls-key", r.Header.Get("Authorization"))
		assert.Equal(t, contentType, r.Header.Get("Content-Type"))
		assert.Equal(t, contentType, r.Header.Get("Accept"))

		var body request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "customers", body.Data.Type)
		assert.Equal(t, "ann@example.com", body.Data.Attributes["email"])
		assert.Equal(t, "42", body.Data.Relationships["store"].Data.ID)

		writeDoc(t, w, map[string]any{
			"type": "customers", "id": "7",
			"attributes": map[string]any{"store_id": 42, "email": "ann@example.com", "name": "Ann", "status": "subscribed", "created_at": "2025-01-10T00:00:00Z"},
		})
	})
	a := newTestAdapter(t, mux)

	c, err := a.CreateCustomer(context.Background(), domain.CreateCustomerInput{Email: "ann@example.com", Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "7", c.ID)
	assert.Equal(t, domain.ProviderLemonSqueezy, c.Processor)
}

func TestNotFoundMapsToEntity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"detail":"Not Found","status":"404","title":"Not Found"}]}`))
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	_, err := a.GetCustomer(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	_, err = a.GetSubscription(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	_, err = a.GetCharge(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrChargeNotFound)
}

func TestStatusMapping(t *testing.T) {
	future := "2025-07-10T00:00:00Z"
	past := "2025-06-01T00:00:00Z"
	cases := []struct {
		status    string
		endsAt    *string
		want      domain.SubscriptionStatus
		atPeriodE bool
	}{
		{"on_trial", nil, domain.SubscriptionStatusTrialing, false},
		{"active", nil, domain.SubscriptionStatusActive, false},
		{"paused", nil, domain.SubscriptionStatusPaused, false},
		{"past_due", nil, domain.SubscriptionStatusPastDue, false},
		{"unpaid", nil, domain.SubscriptionStatusPastDue, false},
		{"cancelled", &future, domain.SubscriptionStatusActive, true},
		{"cancelled", &past, domain.SubscriptionStatusCanceled, false},
		{"expired", &past, domain.SubscriptionStatusCanceled, false},
		{"brand_new", nil, domain.SubscriptionStatusIncomplete, false},
	}
	for _, tc := range cases {
		r := resource[subscriptionAttributes]{ID: "1", Attributes: subscriptionAttributes{Status: tc.status, EndsAt: tc.endsAt}}
		sub := mapSubscription(r, testNow)
		assert.Equal(t, tc.want, sub.Status, tc.status)
		assert.Equal(t, tc.atPeriodE, sub.CancelAtPeriodEnd, tc.status)
	}
}

func TestTrialSubscriptionPeriod(t *testing.T) {
	created := "2025-06-10T00:00:00Z"
	trialEnd := "2025-06-24T00:00:00Z"
	r := resource[subscriptionAttributes]{ID: "1", Attributes: subscriptionAttributes{
		Status: "on_trial", CreatedAt: &created, TrialEndsAt: &trialEnd, RenewsAt: &trialEnd,
	}}
	sub := mapSubscription(r, testNow)

	assert.Equal(t, domain.SubscriptionStatusTrialing, sub.Status)
	require.NotNil(t, sub.TrialStart)
	require.NotNil(t, sub.TrialEnd)
	assert.Equal(t, 14*24*time.Hour, sub.TrialEnd.Sub(*sub.TrialStart))
	assert.False(t, sub.CancelAtPeriodEnd)
	require.NoError(t, sub.Validate())
}

func TestCancelSubscription(t *testing.T) {
	var deletes int32
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v1/subscriptions/1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&deletes, 1)
		writeDoc(t, w, subscriptionResource("1", "cancelled", map[string]any{"cancelled": true, "ends_at": "2025-07-10T00:00:00Z"}))
	})
	a := newTestAdapter(t, mux)

	_, err := a.CancelSubscription(context.Background(), "1", true)
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	assert.Zero(t, atomic.LoadInt32(&deletes))

	sub, err := a.CancelSubscription(context.Background(), "1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestSwapPlanAndPause(t *testing.T) {
	var attrs map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /v1/subscriptions/1", func(w http.ResponseWriter, r *http.Request) {
		var body request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1", body.Data.ID)
		attrs = body.Data.Attributes
		status := "active"
		if _, ok := attrs["pause"].(map[string]any); ok {
			status = "paused"
		}
		writeDoc(t, w, subscriptionResource("1", status, map[string]any{"variant_id": 201}))
	})
	a := newTestAdapter(t, mux)

	sub, err := a.SwapPlan(context.Background(), "1", "201", false)
	require.NoError(t, err)
	assert.Equal(t, "201", sub.PriceID)
	assert.Equal(t, float64(201), attrs["variant_id"])
	assert.Equal(t, true, attrs["disable_prorations"])

	sub, err = a.PauseSubscription(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPaused, sub.Status)
}

func TestListSubscriptionsFiltersByCustomer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/customers/7", func(w http.ResponseWriter, r *http.Request) {
		writeDoc(t, w, map[string]any{"type": "customers", "id": "7", "attributes": map[string]any{"email": "ann@example.com", "status": "subscribed"}})
	})
	mux.HandleFunc("GET /v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("filter[store_id]"))
		assert.Equal(t, "ann@example.com", r.URL.Query().Get("filter[user_email]"))
		other := subscriptionResource("2", "active", map[string]any{"customer_id": 8})
		writeDoc(t, w, []any{subscriptionResource("1", "active", nil), other})
	})
	a := newTestAdapter(t, mux)

	subs, err := a.ListSubscriptions(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "1", subs[0].ID)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), subs[0].CurrentPeriodStart)

	methods, err := a.ListPaymentMethods(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "4242", methods[0].Last4)
	assert.True(t, methods[0].IsDefault)

	_, err = a.AddPaymentMethod(context.Background(), "7", "tok", true)
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
}

func TestRefundOrder(t *testing.T) {
	var refunds int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/orders/55", func(w http.ResponseWriter, r *http.Request) {
		writeDoc(t, w, map[string]any{"type": "orders", "id": "55", "attributes": map[string]any{
			"customer_id": 7, "currency": "USD", "total": 2000, "status": "partial_refund", "refunded_amount": 500,
		}})
	})
	mux.HandleFunc("POST /v1/orders/55/refund", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refunds, 1)
		var body request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(1500), body.Data.Attributes["amount"])
		writeDoc(t, w, map[string]any{"type": "orders", "id": "55", "attributes": map[string]any{
			"customer_id": 7, "currency": "USD", "total": 2000, "status": "refunded", "refunded": true, "refunded_amount": 2000,
		}})
	})
	a := newTestAdapter(t, mux)

	_, err := a.RefundCharge(context.Background(), "55", 1600, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, atomic.LoadInt32(&refunds))

	charge, err := a.RefundCharge(context.Background(), "55", 0, "requested_by_customer")
	require.NoError(t, err)
	assert.True(t, charge.Refunded)
	assert.Equal(t, domain.ChargeStatusRefunded, charge.Status)
	assert.Equal(t, int64(2000), charge.RefundedAmount)
}

func TestParseWebhook(t *testing.T) {
	a := newTestAdapter(t, http.NewServeMux())
	payload := []byte(`{"meta":{"event_name":"subscription_created","webhook_id":"wh-1","custom_data":{"user_id":"u1"}},"data":{"type":"subscriptions","id":"1","attributes":{"status":"on_trial"}}}`)
	signature := webhook.SignHMACSHA256(payload, "ls-secret")

	event, err := a.ParseWebhook(context.Background(), payload, signature)
	require.NoError(t, err)
	assert.Equal(t, "wh-1", event.ID)
	assert.Equal(t, "subscription_created", event.Type)
	assert.Equal(t, "on_trial", event.Data["status"])
	assert.Equal(t, "1", event.Data["id"])

	_, err = a.ParseWebhook(context.Background(), payload, "deadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = a.ParseWebhook(context.Background(), []byte(`{"data":{}}`), "")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestCreateCheckout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/checkouts", func(w http.ResponseWriter, r *http.Request) {
		var body request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "200", body.Data.Relationships["variant"].Data.ID)
		writeDoc(t, w, map[string]any{"type": "checkouts", "id": "chk-1", "attributes": map[string]any{
			"url": "https://store.lemonsqueezy.com/checkout/custom/chk-1", "expires_at": nil,
		}})
	})
	a := newTestAdapter(t, mux)

	session, err := a.CreateCheckout(context.Background(), domain.CheckoutInput{
		CustomerEmail: "ann@example.com",
		Mode:          domain.CheckoutModeSubscription,
		LineItems:     []domain.LineItemInput{{PriceID: "200", Quantity: 1}},
		SuccessURL:    "https://example.com/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "chk-1", session.ID)
	assert.Nil(t, session.ExpiresAt)
}

func TestCreateCustomerRejectsInvalidEmailWithoutNetwork(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	a := newTestAdapter(t, mux)

	_, err := a.CreateCustomer(context.Background(), domain.CreateCustomerInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	var perr *domain.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "email", perr.Field)
	assert.Zero(t, atomic.LoadInt32(&hits))
}
