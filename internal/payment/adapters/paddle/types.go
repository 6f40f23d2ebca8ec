package paddle

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type paddlePayment struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
}

type paddleUser struct {
	SubscriptionID     int64          `json:"subscription_id"`
	PlanID             int64          `json:"plan_id"`
	UserID             int64          `json:"user_id"`
	UserEmail          string         `json:"user_email"`
	State              string         `json:"state"`
	SignupDate         string         `json:"signup_date"`
	Quantity           int            `json:"quantity"`
	UpdateURL          string         `json:"update_url"`
	CancelURL          string         `json:"cancel_url"`
	PausedAt           string         `json:"paused_at"`
	PausedFrom         string         `json:"paused_from"`
	Passthrough        string         `json:"passthrough"`
	LastPayment        *paddlePayment `json:"last_payment"`
	NextPayment        *paddlePayment `json:"next_payment"`
	PaymentInformation *struct {
		PaymentMethod  string `json:"payment_method"`
		CardType       string `json:"card_type"`
		LastFourDigits string `json:"last_four_digits"`
		ExpiryDate     string `json:"expiry_date"`
	} `json:"payment_information"`
}

func (u paddleUser) matches(customerID string) bool {
	if customerID == "" {
		return false
	}
	return strconv.FormatInt(u.UserID, 10) == customerID || strings.EqualFold(u.UserEmail, customerID)
}

type paddleSubscriptionPayment struct {
	ID             int64   `json:"id"`
	SubscriptionID int64   `json:"subscription_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PayoutDate     string  `json:"payout_date"`
	IsPaid         int     `json:"is_paid"`
	IsOneOffCharge bool    `json:"is_one_off_charge"`
	ReceiptURL     string  `json:"receipt_url"`
}

var subscriptionStatuses = domain.StatusMap{
	"active":   domain.SubscriptionStatusActive,
	"trialing": domain.SubscriptionStatusTrialing,
	"past_due": domain.SubscriptionStatusPastDue,
	"paused":   domain.SubscriptionStatusPaused,
	"deleted":  domain.SubscriptionStatusCanceled,
}

func mapSubscription(u paddleUser, customerID string) *domain.Subscription {
	if customerID == "" {
		customerID = strconv.FormatInt(u.UserID, 10)
	}
	id := strconv.FormatInt(u.SubscriptionID, 10)
	out := &domain.Subscription{
		ID:                      id,
		CustomerID:              customerID,
		Status:                  subscriptionStatuses.Map(u.State),
		PriceID:                 strconv.FormatInt(u.PlanID, 10),
		ProductID:               strconv.FormatInt(u.PlanID, 10),
		Quantity:                1,
		Processor:               domain.ProviderPaddle,
		ProcessorSubscriptionID: id,
		Metadata:                decodePassthrough(u.Passthrough),
	}
	if u.Quantity > 0 {
		out.Quantity = u.Quantity
	}

	signup := parseDateTime(u.SignupDate)
	start := signup
	if u.LastPayment != nil {
		if paid := parseDateTime(u.LastPayment.Date); !paid.IsZero() {
			start = paid
		}
	}
	var end time.Time
	if u.NextPayment != nil {
		end = parseDateTime(u.NextPayment.Date)
		out.Currency = domain.NormalizeCurrency(u.NextPayment.Currency)
		out.Amount = domain.FromMajor(u.NextPayment.Amount, out.Currency)
	} else if u.LastPayment != nil {
		out.Currency = domain.NormalizeCurrency(u.LastPayment.Currency)
		out.Amount = domain.FromMajor(u.LastPayment.Amount, out.Currency)
	}
	if !start.IsZero() && !end.After(start) {
		end = start.AddDate(0, 1, 0)
	}
	out.CurrentPeriodStart, out.CurrentPeriodEnd = start, end

	if out.Status == domain.SubscriptionStatusTrialing && !signup.IsZero() {
		trialEnd := end
		out.TrialStart = &signup
		out.TrialEnd = &trialEnd
	}
	if out.Status == domain.SubscriptionStatusCanceled {
		canceled := end
		if canceled.IsZero() {
			canceled = start
		}
		out.CanceledAt = &canceled
	}
	return out
}

func mapPaymentMethod(u paddleUser) *domain.PaymentMethod {
	if u.PaymentInformation == nil {
		return nil
	}
	info := u.PaymentInformation
	out := &domain.PaymentMethod{
		ID:         "sub_" + strconv.FormatInt(u.SubscriptionID, 10),
		CustomerID: strconv.FormatInt(u.UserID, 10),
		Type:       domain.PaymentMethodTypeCard,
		Last4:      info.LastFourDigits,
		Brand:      info.CardType,
		Processor:  domain.ProviderPaddle,
	}
	if strings.EqualFold(info.PaymentMethod, "paypal") {
		out.Type = domain.PaymentMethodTypePayPal
	}
	if month, year, ok := strings.Cut(info.ExpiryDate, "/"); ok {
		out.ExpMonth, _ = strconv.Atoi(month)
		out.ExpYear, _ = strconv.Atoi(year)
	}
	return out
}

func mapPayment(p paddleSubscriptionPayment, customerID string) *domain.Charge {
	currency := domain.NormalizeCurrency(p.Currency)
	id := strconv.FormatInt(p.ID, 10)
	out := &domain.Charge{
		ID:                id,
		CustomerID:        customerID,
		Amount:            domain.FromMajor(p.Amount, currency),
		Currency:          currency,
		Status:            domain.ChargeStatusPending,
		Processor:         domain.ProviderPaddle,
		ProcessorChargeID: id,
		CreatedAt:         parseDateTime(p.PayoutDate),
		Metadata:          map[string]string{"subscription_id": strconv.FormatInt(p.SubscriptionID, 10)},
	}
	if p.IsPaid == 1 {
		out.Status = domain.ChargeStatusSucceeded
	}
	if p.ReceiptURL != "" {
		out.Metadata["receipt_url"] = p.ReceiptURL
	}
	return out
}

// decodePassthrough reads metadata this adapter stored as a JSON object.
// Anything else is kept under "passthrough".
func decodePassthrough(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}
	return map[string]string{"passthrough": raw}
}

func encodePassthrough(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(raw)
}

func parseDateTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
