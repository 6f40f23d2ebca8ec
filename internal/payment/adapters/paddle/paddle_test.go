package paddle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
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
		Provider: domain.ProviderPaddle,
		Settings: Config{
			VendorID:       "12345",
			VendorAuthCode: "auth-code",
			PublicKey:      "alert-key",
			Environment:    EnvironmentSandbox,
		},
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Log:        zap.NewNop(),
		Clock:      clock.Fixed(testNow),
	})
	require.NoError(t, err)
	return processor.(*Adapter)
}

func respond(t *testing.T, w http.ResponseWriter, response any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"success": true, "response": response}))
}

func activeUser() map[string]any {
	return map[string]any{
		"subscription_id": 502198,
		"plan_id":         496199,
		"user_id":         285846,
		"user_email":      "ann@example.com",
		"state":           "active",
		"signup_date":     "2025-03-01 10:00:00",
		"last_payment":    map[string]any{"amount": 29, "currency": "USD", "date": "2025-06-01"},
		"next_payment":    map[string]any{"amount": 29, "currency": "USD", "date": "2025-07-01"},
		"payment_information": map[string]any{
			"payment_method": "card", "card_type": "visa", "last_four_digits": "4242", "expiry_date": "04/2027",
		},
		"passthrough": `{"team":"core"}`,
	}
}

func TestCallSendsVendorCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/subscription/users", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "12345", r.PostForm.Get("vendor_id"))
		assert.Equal(t, "auth-code", r.PostForm.Get("vendor_auth_code"))
		assert.Equal(t, "502198", r.PostForm.Get("subscription_id"))
		respond(t, w, []any{activeUser()})
	})
	a := newTestAdapter(t, mux)

	sub, err := a.GetSubscription(context.Background(), "502198")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "496199", sub.PriceID)
	assert.Equal(t, int64(2900), sub.Amount)
	assert.Equal(t, "usd", sub.Currency)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), sub.CurrentPeriodStart)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), sub.CurrentPeriodEnd)
	assert.Equal(t, "core", sub.Metadata["team"])
	require.NoError(t, sub.Validate())
}

func TestEnvelopeErrors(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		message string
		want    error
	}{
		{"permission", 107, "You don't have permission to access this resource", domain.ErrAuthentication},
		{"missing subscription", 119, "Unable to find requested subscription", domain.ErrSubscriptionNotFound},
		{"invalid", 147, "The given plan_id is invalid", domain.ErrValidation},
		{"other", 122, "Something went wrong", domain.ErrProcessor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   map[string]any{"code": tc.code, "message": tc.message},
				})
			})
			a := newTestAdapter(t, mux)

			_, err := a.GetSubscription(context.Background(), "1")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetSubscriptionEmptyResultIsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, []any{})
	})
	a := newTestAdapter(t, mux)

	_, err := a.GetSubscription(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	_, err = a.GetSubscription(context.Background(), "not-numeric")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateCustomerIsEmailKeyed(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	a := newTestAdapter(t, mux)

	_, err := a.CreateCustomer(context.Background(), domain.CreateCustomerInput{Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err := a.CreateCustomer(context.Background(), domain.CreateCustomerInput{Email: "Ann@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", c.ID)
	assert.Equal(t, testNow, c.CreatedAt)
	assert.Zero(t, atomic.LoadInt32(&hits))

	_, err = a.CreateSubscription(context.Background(), domain.CreateSubscriptionInput{CustomerID: c.ID})
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
}

func TestListSubscriptionsAndPaymentMethodsByEmail(t *testing.T) {
	deleted := activeUser()
	deleted["subscription_id"] = 400001
	deleted["state"] = "deleted"
	delete(deleted, "next_payment")
	other := activeUser()
	other["user_id"] = 1
	other["user_email"] = "someone@else.com"

	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/subscription/users", func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, []any{deleted, activeUser(), other})
	})
	a := newTestAdapter(t, mux)

	subs, err := a.ListSubscriptions(context.Background(), "ann@example.com")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, domain.SubscriptionStatusCanceled, subs[0].Status)
	assert.NotNil(t, subs[0].CanceledAt)
	assert.Equal(t, domain.SubscriptionStatusActive, subs[1].Status)

	methods, err := a.ListPaymentMethods(context.Background(), "285846")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.True(t, methods[0].IsDefault)
	assert.Equal(t, "4242", methods[0].Last4)
	assert.Equal(t, 4, methods[0].ExpMonth)
	assert.Equal(t, 2027, methods[0].ExpYear)
}

func TestCancelSubscription(t *testing.T) {
	var cancelled int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/subscription/users", func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, []any{activeUser()})
	})
	mux.HandleFunc("POST /2.0/subscription/users_cancel", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "502198", r.PostForm.Get("subscription_id"))
		atomic.AddInt32(&cancelled, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	a := newTestAdapter(t, mux)

	_, err := a.CancelSubscription(context.Background(), "502198", false)
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	assert.Zero(t, atomic.LoadInt32(&cancelled))

	sub, err := a.CancelSubscription(context.Background(), "502198", true)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, testNow, *sub.CanceledAt)
	assert.EqualValues(t, 1, atomic.LoadInt32(&cancelled))
}

func TestSwapPlanPassesProration(t *testing.T) {
	var form url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/subscription/users/update", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		respond(t, w, map[string]any{"subscription_id": 502198})
	})
	mux.HandleFunc("POST /2.0/subscription/users", func(w http.ResponseWriter, r *http.Request) {
		user := activeUser()
		user["plan_id"] = 777
		respond(t, w, []any{user})
	})
	a := newTestAdapter(t, mux)

	sub, err := a.SwapPlan(context.Background(), "502198", "777", true)
	require.NoError(t, err)
	assert.Equal(t, "777", sub.PriceID)
	assert.Equal(t, "777", form.Get("plan_id"))
	assert.Equal(t, "true", form.Get("prorate"))
	assert.Equal(t, "true", form.Get("bill_immediately"))
}

func TestStatusMapping(t *testing.T) {
	for native, want := range map[string]domain.SubscriptionStatus{
		"active":   domain.SubscriptionStatusActive,
		"trialing": domain.SubscriptionStatusTrialing,
		"past_due": domain.SubscriptionStatusPastDue,
		"paused":   domain.SubscriptionStatusPaused,
		"deleted":  domain.SubscriptionStatusCanceled,
		"mystery":  domain.SubscriptionStatusIncomplete,
	} {
		assert.Equal(t, want, mapSubscription(paddleUser{State: native}, "").Status, native)
	}
}

func TestParseWebhookSortedFieldSignature(t *testing.T) {
	a := newTestAdapter(t, http.NewServeMux())
	fields := map[string]string{
		"alert_name":      "subscription_created",
		"alert_id":        "1631283",
		"subscription_id": "502198",
		"status":          "active",
	}
	signature := webhook.SignSortedFields(fields, signatureField, "alert-key")

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set(signatureField, signature)
	payload := []byte(form.Encode())

	event, err := a.ParseWebhook(context.Background(), payload, "")
	require.NoError(t, err)
	assert.Equal(t, "1631283", event.ID)
	assert.Equal(t, "subscription_created", event.Type)
	assert.Equal(t, "502198", event.Data["subscription_id"])
	assert.NotContains(t, event.Data, signatureField)
	assert.True(t, a.VerifySignature(payload, "", "alert-key"))

	form.Set("status", "deleted")
	_, err = a.ParseWebhook(context.Background(), []byte(form.Encode()), "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestCreateCheckoutPayLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/product/generate_pay_link", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "496199", r.PostForm.Get("product_id"))
		assert.Equal(t, "ann@example.com", r.PostForm.Get("customer_email"))
		assert.JSONEq(t, `{"team":"core"}`, r.PostForm.Get("passthrough"))
		respond(t, w, map[string]any{"url": "https://pay.paddle.com/checkout/abc"})
	})
	a := newTestAdapter(t, mux)

	session, err := a.CreateCheckout(context.Background(), domain.CheckoutInput{
		CustomerID: "ann@example.com",
		Mode:       domain.CheckoutModeSubscription,
		LineItems:  []domain.LineItemInput{{PriceID: "496199", Quantity: 1}},
		SuccessURL: "https://example.com/thanks",
		Metadata:   map[string]string{"team": "core"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.paddle.com/checkout/abc", session.URL)
	assert.Equal(t, domain.ProviderPaddle, session.Processor)
}

func TestCreateChargeAgainstLiveSubscription(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/subscription/users", func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, []any{activeUser()})
	})
	mux.HandleFunc("POST /2.0/subscription/502198/charge", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "12.50", r.PostForm.Get("amount"))
		respond(t, w, map[string]any{
			"invoice_id": 1, "subscription_id": 502198, "amount": 12.5, "currency": "USD",
			"payment_date": "2025-06-16", "order_id": "123-456", "status": "success",
		})
	})
	a := newTestAdapter(t, mux)

	charge, err := a.CreateCharge(context.Background(), domain.CreateChargeInput{CustomerID: "ann@example.com", Amount: 1250, Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "123-456", charge.ID)
	assert.Equal(t, int64(1250), charge.Amount)
	assert.Equal(t, domain.ChargeStatusSucceeded, charge.Status)
}

func TestRefundChargeSendsOrderAndAmount(t *testing.T) {
	var forms []url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/payment/refund", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		forms = append(forms, r.PostForm)
		respond(t, w, map[string]any{"refund_request_id": 12345})
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	partial, err := a.RefundCharge(ctx, "123-456", 500, "requested_by_customer")
	require.NoError(t, err)
	assert.Equal(t, int64(500), partial.RefundedAmount)
	assert.False(t, partial.Refunded)
	assert.Equal(t, "12345", partial.Metadata["refund_request_id"])

	full, err := a.RefundCharge(ctx, "123-456", 0, "")
	require.NoError(t, err)
	assert.True(t, full.Refunded)
	assert.Equal(t, domain.ChargeStatusRefunded, full.Status)

	require.Len(t, forms, 2)
	assert.Equal(t, "123-456", forms[0].Get("order_id"))
	assert.Equal(t, "5.00", forms[0].Get("amount"))
	assert.Equal(t, "requested_by_customer", forms[0].Get("reason"))
	assert.Equal(t, "12345", forms[0].Get("vendor_id"))
	assert.False(t, forms[1].Has("amount"))
}

func TestRefundChargeAboveRemainderIsValidationError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2.0/payment/refund", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": 172, "message": "The refund amount exceeds the refundable amount"},
		}))
	})
	a := newTestAdapter(t, mux)

	_, err := a.RefundCharge(context.Background(), "123-456", 999999, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = a.RefundCharge(context.Background(), "123-456", -1, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
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
