package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
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

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	processor, err := NewFactory().NewAdapter(domain.AdapterConfig{
		Provider: domain.ProviderStripe,
		Settings: Config{
			SecretKey:      "sk_test_123",
			PublishableKey: "pk_test_123",
			WebhookSecret:  "whsec_test",
		},
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Log:        zap.NewNop(),
		Clock:      clock.Fixed(testNow),
	})
	require.NoError(t, err)
	return processor.(*Adapter)
}

func TestFactoryRejectsMissingSettings(t *testing.T) {
	_, err := NewFactory().NewAdapter(domain.AdapterConfig{Provider: domain.ProviderStripe})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewFactory().NewAdapter(domain.AdapterConfig{Settings: Config{}})
	var perr *domain.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "stripe.secret_key", perr.Field)
}

func TestCreateCustomerRejectsInvalidEmailWithoutNetwork(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	a := newTestAdapter(t, mux)

	_, err := a.CreateCustomer(context.Background(), domain.CreateCustomerInput{Email: "not-an-email"})
	var perr *domain.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.KindValidation, perr.Kind)
	assert.Equal(t, "email", perr.Field)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCreateCustomer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "a@b.com", r.PostForm.Get("email"))
		assert.Equal(t, "u_1", r.PostForm.Get("metadata[user_id]"))
		_, _ = w.Write([]byte(`{"id":"cus_1","email":"a@b.com","name":"Ann","created":1700000000,"metadata":{"user_id":"u_1"}}`))
	})
	a := newTestAdapter(t, mux)

	c, err := a.CreateCustomer(context.Background(), domain.CreateCustomerInput{
		Email:    "a@b.com",
		Name:     "Ann",
		Metadata: map[string]string{"user_id": "u_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", c.ID)
	assert.Equal(t, "cus_1", c.ProcessorCustomerID)
	assert.Equal(t, domain.ProviderStripe, c.Processor)
	assert.Equal(t, int64(1700000000), c.CreatedAt.Unix())
}

func TestGetCustomerNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers/cus_missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"resource_missing","message":"No such customer: 'cus_missing'","type":"invalid_request_error"}}`))
	})
	mux.HandleFunc("/v1/customers/cus_deleted", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cus_deleted","deleted":true}`))
	})
	a := newTestAdapter(t, mux)

	_, err := a.GetCustomer(context.Background(), "cus_missing")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	_, err = a.GetCustomer(context.Background(), "cus_deleted")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestAddPaymentMethodFromTokenAsDefault(t *testing.T) {
	var defaultSet string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_methods", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok_1", r.PostForm.Get("card[token]"))
		_, _ = w.Write([]byte(`{"id":"pm_1","type":"card"}`))
	})
	mux.HandleFunc("/v1/payment_methods/pm_1/attach", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		_, _ = w.Write([]byte(`{"id":"pm_1","type":"card","customer":"cus_1","card":{"last4":"4242","brand":"visa","exp_month":12,"exp_year":2030}}`))
	})
	mux.HandleFunc("/v1/customers/cus_1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		defaultSet = r.PostForm.Get("invoice_settings[default_payment_method]")
		_, _ = w.Write([]byte(`{"id":"cus_1"}`))
	})
	a := newTestAdapter(t, mux)

	pm, err := a.AddPaymentMethod(context.Background(), "cus_1", "tok_1", true)
	require.NoError(t, err)
	assert.Equal(t, "pm_1", pm.ID)
	assert.Equal(t, "4242", pm.Last4)
	assert.Equal(t, domain.PaymentMethodTypeCard, pm.Type)
	assert.True(t, pm.IsDefault)
	assert.Equal(t, "pm_1", defaultSet)
}

func TestAddPaymentMethodAlreadyAttached(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_methods/pm_2/attach", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"The payment method you provided has already been attached to a customer."}}`))
	})
	mux.HandleFunc("/v1/payment_methods/pm_2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pm_2","type":"card","customer":"cus_1","card":{"last4":"1111"}}`))
	})
	a := newTestAdapter(t, mux)

	pm, err := a.AddPaymentMethod(context.Background(), "cus_1", "pm_2", false)
	require.NoError(t, err)
	assert.Equal(t, "1111", pm.Last4)
	assert.False(t, pm.IsDefault)
}

func TestListPaymentMethodsMarksDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers/cus_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cus_1","invoice_settings":{"default_payment_method":"pm_b"}}`))
	})
	mux.HandleFunc("/v1/customers/cus_1/payment_methods", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"pm_a","type":"card"},{"id":"pm_b","type":"us_bank_account","us_bank_account":{"last4":"6789"}}]}`))
	})
	a := newTestAdapter(t, mux)

	methods, err := a.ListPaymentMethods(context.Background(), "cus_1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.False(t, methods[0].IsDefault)
	assert.True(t, methods[1].IsDefault)
	assert.Equal(t, domain.PaymentMethodTypeBankAccount, methods[1].Type)
	assert.Equal(t, "6789", methods[1].Last4)
}

func TestCreateSubscriptionWithTrial(t *testing.T) {
	trialStart := testNow.Unix()
	trialEnd := testNow.AddDate(0, 0, 14).Unix()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "14", r.PostForm.Get("trial_period_days"))
		assert.Equal(t, "plan_pro", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "pm_1", r.PostForm.Get("default_payment_method"))
		_, _ = w.Write([]byte(`{"id":"sub_1","customer":"cus_1","status":"trialing",
			"current_period_start":` + itoa(trialStart) + `,"current_period_end":` + itoa(trialEnd) + `,
			"trial_start":` + itoa(trialStart) + `,"trial_end":` + itoa(trialEnd) + `,
			"cancel_at_period_end":false,
			"items":{"data":[{"id":"si_1","quantity":1,"price":{"id":"plan_pro","product":"prod_1","unit_amount":2000,"currency":"usd"}}]}}`))
	})
	a := newTestAdapter(t, mux)

	sub, err := a.CreateSubscription(context.Background(), domain.CreateSubscriptionInput{
		CustomerID:      "cus_1",
		PriceID:         "plan_pro",
		PaymentMethodID: "pm_1",
		TrialDays:       14,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusTrialing, sub.Status)
	require.NotNil(t, sub.TrialStart)
	require.NotNil(t, sub.TrialEnd)
	assert.Equal(t, 14*24*time.Hour, sub.TrialEnd.Sub(*sub.TrialStart))
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "prod_1", sub.ProductID)
	assert.Equal(t, int64(2000), sub.Amount)
	require.NoError(t, sub.Validate())
}

func TestCancelSubscriptionAtPeriodEndKeepsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscriptions/sub_1", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
			_, _ = w.Write([]byte(`{"id":"sub_1","status":"active","cancel_at_period_end":true}`))
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{"id":"sub_1","status":"canceled","canceled_at":1700000000}`))
		}
	})
	a := newTestAdapter(t, mux)

	sub, err := a.CancelSubscription(context.Background(), "sub_1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)

	sub, err = a.CancelSubscription(context.Background(), "sub_1", true)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
}

func TestPauseAndResume(t *testing.T) {
	paused := false
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscriptions/sub_1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			if r.PostForm.Get("pause_collection[behavior]") == "void" {
				paused = true
			}
			if _, ok := r.PostForm["pause_collection"]; ok {
				paused = false
			}
		}
		if paused {
			_, _ = w.Write([]byte(`{"id":"sub_1","status":"active","pause_collection":{"behavior":"void"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"sub_1","status":"active"}`))
	})
	a := newTestAdapter(t, mux)

	sub, err := a.PauseSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPaused, sub.Status)

	sub, err = a.ResumeSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestSwapPlanUsesProrationBehavior(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscriptions/sub_1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "si_1", r.PostForm.Get("items[0][id]"))
			assert.Equal(t, "plan_max", r.PostForm.Get("items[0][price]"))
			assert.Equal(t, "create_prorations", r.PostForm.Get("proration_behavior"))
			_, _ = w.Write([]byte(`{"id":"sub_1","status":"active","items":{"data":[{"id":"si_1","price":{"id":"plan_max"}}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"sub_1","status":"active","items":{"data":[{"id":"si_1","price":{"id":"plan_pro"}}]}}`))
	})
	a := newTestAdapter(t, mux)

	sub, err := a.SwapPlan(context.Background(), "sub_1", "plan_max", true)
	require.NoError(t, err)
	assert.Equal(t, "plan_max", sub.PriceID)
}

func TestRefundChargeExceedingRemainderDoesNotCallRefunds(t *testing.T) {
	var refunds int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_intents/pi_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pi_1","amount":1000,"currency":"usd","status":"succeeded","latest_charge":{"id":"ch_1","amount":1000,"amount_refunded":400}}`))
	})
	mux.HandleFunc("/v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refunds, 1)
		_, _ = w.Write([]byte(`{"id":"re_1"}`))
	})
	a := newTestAdapter(t, mux)

	_, err := a.RefundCharge(context.Background(), "pi_1", 700, "requested_by_customer")
	var perr *domain.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.KindValidation, perr.Kind)
	assert.Equal(t, "amount", perr.Field)
	assert.Zero(t, atomic.LoadInt32(&refunds))

	charge, err := a.GetCharge(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(400), charge.RefundedAmount)
}

func TestRefundChargeRemainder(t *testing.T) {
	refunded := int64(0)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_intents/pi_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pi_1","amount":1000,"currency":"usd","status":"succeeded","latest_charge":{"id":"ch_1","amount":1000,"amount_refunded":` + itoa(refunded) + `}}`))
	})
	mux.HandleFunc("/v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1000", r.PostForm.Get("amount"))
		assert.Equal(t, "requested_by_customer", r.PostForm.Get("reason"))
		refunded = 1000
		_, _ = w.Write([]byte(`{"id":"re_1","status":"succeeded"}`))
	})
	a := newTestAdapter(t, mux)

	charge, err := a.RefundCharge(context.Background(), "pi_1", 0, "requested_by_customer")
	require.NoError(t, err)
	assert.True(t, charge.Refunded)
	assert.Equal(t, domain.ChargeStatusRefunded, charge.Status)
	assert.Equal(t, int64(1000), charge.RefundedAmount)
}

func TestCreateChargeDeclined(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
	})
	a := newTestAdapter(t, mux)

	_, err := a.CreateCharge(context.Background(), domain.CreateChargeInput{
		CustomerID:      "cus_1",
		Amount:          500,
		Currency:        "USD",
		PaymentMethodID: "pm_1",
		IdempotencyKey:  "order-1",
	})
	assert.ErrorIs(t, err, domain.ErrPaymentMethod)
}

func TestStatusMapping(t *testing.T) {
	cases := map[string]domain.SubscriptionStatus{
		"trialing":           domain.SubscriptionStatusTrialing,
		"active":             domain.SubscriptionStatusActive,
		"past_due":           domain.SubscriptionStatusPastDue,
		"unpaid":             domain.SubscriptionStatusPastDue,
		"canceled":           domain.SubscriptionStatusCanceled,
		"incomplete_expired": domain.SubscriptionStatusCanceled,
		"paused":             domain.SubscriptionStatusPaused,
		"brand_new_status":   domain.SubscriptionStatusIncomplete,
	}
	for native, want := range cases {
		assert.Equal(t, want, mapSubscription(stripeSubscription{Status: native}).Status, native)
	}
}

func TestParseWebhook(t *testing.T) {
	a := newTestAdapter(t, http.NewServeMux())
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","created":1700000000,"data":{"object":{"id":"in_1","amount_paid":2000}}}`)
	header := webhook.SignTimestampedHMAC(payload, "whsec_test", time.Unix(1700000000, 0))

	event, err := a.ParseWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.paid", event.Type)
	assert.Equal(t, "in_1", event.Data["id"])
	assert.Equal(t, testNow, event.ReceivedAt)

	_, err = a.ParseWebhook(context.Background(), payload, "t=1700000000,v1=00")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = a.ParseWebhook(context.Background(), []byte(`not json`), "")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestParseWebhookTolerance(t *testing.T) {
	a := newTestAdapter(t, http.NewServeMux())
	a.cfg.WebhookTolerance = 5 * time.Minute
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded","data":{"object":{}}}`)

	_, err := a.ParseWebhook(context.Background(), payload, webhook.SignTimestampedHMAC(payload, "whsec_test", testNow.Add(-time.Minute)))
	require.NoError(t, err)

	_, err = a.ParseWebhook(context.Background(), payload, webhook.SignTimestampedHMAC(payload, "whsec_test", testNow.Add(-time.Hour)))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestCreateCheckout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "price_1", r.PostForm.Get("line_items[0][price]"))
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://checkout.stripe.com/c/cs_1","status":"open","expires_at":1700003600}`))
	})
	a := newTestAdapter(t, mux)

	session, err := a.CreateCheckout(context.Background(), domain.CheckoutInput{
		CustomerID: "cus_1",
		Mode:       domain.CheckoutModeSubscription,
		LineItems:  []domain.LineItemInput{{PriceID: "price_1", Quantity: 1}},
		SuccessURL: "https://example.com/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", session.URL)
	assert.Equal(t, domain.CheckoutSessionStatusOpen, session.Status)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
