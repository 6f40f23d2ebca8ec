package xendit

import (
	"strconv"
	"strings"
	"time"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type xenditIndividual struct {
	GivenNames string `json:"given_names,omitempty"`
	Surname    string `json:"surname,omitempty"`
}

type xenditCustomerRequest struct {
	ReferenceID string            `json:"reference_id,omitempty"`
	Type        string            `json:"type,omitempty"`
	Individual  *xenditIndividual `json:"individual_detail,omitempty"`
	Email       string            `json:"email,omitempty"`
	Mobile      string            `json:"mobile_number,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type xenditCustomer struct {
	ID          string            `json:"id"`
	ReferenceID string            `json:"reference_id"`
	Email       string            `json:"email"`
	Mobile      string            `json:"mobile_number"`
	Individual  *xenditIndividual `json:"individual_detail"`
	Metadata    map[string]string `json:"metadata"`
	Created     string            `json:"created"`
	Updated     string            `json:"updated"`
}

type xenditPaymentMethod struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	CustomerID  string `json:"customer_id"`
	Status      string `json:"status"`
	Reusability string `json:"reusability"`
	Card        *struct {
		CardInformation struct {
			MaskedCardNumber string `json:"masked_card_number"`
			Network          string `json:"network"`
			ExpiryMonth      string `json:"expiry_month"`
			ExpiryYear       string `json:"expiry_year"`
			CardholderName   string `json:"cardholder_name"`
		} `json:"card_information"`
	} `json:"card"`
	DirectDebit *struct {
		ChannelCode       string `json:"channel_code"`
		BankAccountNumber string `json:"masked_bank_account_number"`
	} `json:"direct_debit"`
	Ewallet *struct {
		ChannelCode string `json:"channel_code"`
	} `json:"ewallet"`
}

type xenditPaymentMethodList struct {
	Data    []xenditPaymentMethod `json:"data"`
	HasMore bool                  `json:"has_more"`
}

type xenditSchedule struct {
	ReferenceID   string `json:"reference_id,omitempty"`
	Interval      string `json:"interval"`
	IntervalCount int    `json:"interval_count"`
	AnchorDate    string `json:"anchor_date,omitempty"`
}

type xenditPlanPaymentMethod struct {
	PaymentMethodID string `json:"payment_method_id"`
	Rank            int    `json:"rank"`
}

type xenditPlanRequest struct {
	ReferenceID         string                    `json:"reference_id,omitempty"`
	CustomerID          string                    `json:"customer_id,omitempty"`
	RecurringAction     string                    `json:"recurring_action,omitempty"`
	Currency            string                    `json:"currency,omitempty"`
	Amount              *float64                  `json:"amount,omitempty"`
	Schedule            *xenditSchedule           `json:"schedule,omitempty"`
	PaymentMethods      []xenditPlanPaymentMethod `json:"payment_methods,omitempty"`
	ImmediateActionType string                    `json:"immediate_action_type,omitempty"`
	Metadata            map[string]string         `json:"metadata,omitempty"`
}

type xenditPlan struct {
	ID          string            `json:"id"`
	ReferenceID string            `json:"reference_id"`
	CustomerID  string            `json:"customer_id"`
	Status      string            `json:"status"`
	Currency    string            `json:"currency"`
	Amount      float64           `json:"amount"`
	Schedule    xenditSchedule    `json:"schedule"`
	Metadata    map[string]string `json:"metadata"`
	Created     string            `json:"created"`
	Updated     string            `json:"updated"`
}

type xenditPlanList struct {
	Data []xenditPlan `json:"data"`
}

type xenditPaymentRequest struct {
	ID              string            `json:"id"`
	ReferenceID     string            `json:"reference_id"`
	CustomerID      string            `json:"customer_id"`
	Amount          float64           `json:"amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	Description     string            `json:"description"`
	FailureCode     string            `json:"failure_code"`
	Metadata        map[string]string `json:"metadata"`
	Created         string            `json:"created"`
	PaymentMethodID string            `json:"payment_method_id"`
}

type xenditPaymentRequestList struct {
	Data []xenditPaymentRequest `json:"data"`
}

type xenditRefund struct {
	ID               string  `json:"id"`
	PaymentRequestID string  `json:"payment_request_id"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
}

type xenditRefundList struct {
	Data []xenditRefund `json:"data"`
}

var planStatuses = domain.StatusMap{
	"active":          domain.SubscriptionStatusActive,
	"requires_action": domain.SubscriptionStatusIncomplete,
	"pending":         domain.SubscriptionStatusIncomplete,
	"inactive":        domain.SubscriptionStatusCanceled,
}

func mapCustomer(c xenditCustomer) *domain.Customer {
	out := &domain.Customer{
		ID:                  c.ID,
		Email:               c.Email,
		Phone:               c.Mobile,
		Processor:           domain.ProviderXendit,
		ProcessorCustomerID: c.ID,
		Metadata:            c.Metadata,
		CreatedAt:           parseTime(c.Created),
		UpdatedAt:           parseTime(c.Updated),
	}
	if c.Individual != nil {
		out.Name = strings.TrimSpace(c.Individual.GivenNames + " " + c.Individual.Surname)
	}
	return out
}

func mapPaymentMethod(pm xenditPaymentMethod, defaultID string) *domain.PaymentMethod {
	out := &domain.PaymentMethod{
		ID:         pm.ID,
		CustomerID: pm.CustomerID,
		Type:       domain.PaymentMethodTypeCard,
		IsDefault:  pm.ID != "" && pm.ID == defaultID,
		Processor:  domain.ProviderXendit,
	}
	switch strings.ToUpper(pm.Type) {
	case "CARD":
		if pm.Card != nil {
			info := pm.Card.CardInformation
			out.Last4 = lastFour(info.MaskedCardNumber)
			out.Brand = strings.ToLower(info.Network)
			out.ExpMonth, _ = strconv.Atoi(info.ExpiryMonth)
			out.ExpYear, _ = strconv.Atoi(info.ExpiryYear)
			if info.CardholderName != "" {
				out.BillingDetails = &domain.BillingDetails{Name: info.CardholderName}
			}
		}
	case "DIRECT_DEBIT", "VIRTUAL_ACCOUNT":
		out.Type = domain.PaymentMethodTypeBankAccount
		if pm.DirectDebit != nil {
			out.Brand = strings.ToLower(pm.DirectDebit.ChannelCode)
			out.Last4 = lastFour(pm.DirectDebit.BankAccountNumber)
		}
	case "EWALLET":
		out.Type = domain.PaymentMethodTypeWallet
		if pm.Ewallet != nil {
			out.Brand = strings.ToLower(pm.Ewallet.ChannelCode)
		}
	}
	return out
}

// mapPlan derives the current billing period from the schedule anchor since
// recurring plans do not report one.
func mapPlan(p xenditPlan, now time.Time) *domain.Subscription {
	currency := domain.NormalizeCurrency(p.Currency)
	out := &domain.Subscription{
		ID:                      p.ID,
		CustomerID:              p.CustomerID,
		Status:                  planStatuses.Map(p.Status),
		PriceID:                 p.Metadata[metadataPriceID],
		Quantity:                1,
		Amount:                  domain.FromMajor(p.Amount, currency),
		Currency:                currency,
		Processor:               domain.ProviderXendit,
		ProcessorSubscriptionID: p.ID,
		Metadata:                p.Metadata,
	}
	if q, err := strconv.Atoi(p.Metadata[metadataQuantity]); err == nil && q > 0 {
		out.Quantity = q
	}

	anchor := parseTime(p.Schedule.AnchorDate)
	if anchor.IsZero() {
		anchor = parseTime(p.Created)
	}
	out.CurrentPeriodStart, out.CurrentPeriodEnd = currentPeriod(anchor, p.Schedule.Interval, p.Schedule.IntervalCount, now)

	if out.Status == domain.SubscriptionStatusCanceled {
		if updated := parseTime(p.Updated); !updated.IsZero() {
			out.CanceledAt = &updated
		}
	}
	return out
}

const maxPeriodSteps = 10000

func currentPeriod(anchor time.Time, interval string, count int, now time.Time) (time.Time, time.Time) {
	if anchor.IsZero() {
		return time.Time{}, time.Time{}
	}
	if count <= 0 {
		count = 1
	}
	step := func(t time.Time) time.Time {
		switch strings.ToUpper(interval) {
		case "DAY":
			return t.AddDate(0, 0, count)
		case "WEEK":
			return t.AddDate(0, 0, 7*count)
		case "YEAR":
			return t.AddDate(count, 0, 0)
		default:
			return t.AddDate(0, count, 0)
		}
	}
	start := anchor
	end := step(start)
	for i := 0; i < maxPeriodSteps && !end.After(now); i++ {
		start, end = end, step(end)
	}
	return start, end
}

func mapCharge(pr xenditPaymentRequest, refunded int64) *domain.Charge {
	currency := domain.NormalizeCurrency(pr.Currency)
	out := &domain.Charge{
		ID:                pr.ID,
		CustomerID:        pr.CustomerID,
		Amount:            domain.FromMajor(pr.Amount, currency),
		Currency:          currency,
		Description:       pr.Description,
		Processor:         domain.ProviderXendit,
		ProcessorChargeID: pr.ID,
		CreatedAt:         parseTime(pr.Created),
		Metadata:          pr.Metadata,
	}
	switch strings.ToUpper(pr.Status) {
	case "SUCCEEDED":
		out.Status = domain.ChargeStatusSucceeded
	case "FAILED", "CANCELED", "VOIDED", "EXPIRED":
		out.Status = domain.ChargeStatusFailed
	default:
		out.Status = domain.ChargeStatusPending
	}
	if refunded > out.Amount {
		refunded = out.Amount
	}
	out.RefundedAmount = refunded
	if out.Amount > 0 && refunded >= out.Amount {
		out.Refunded = true
		out.Status = domain.ChargeStatusRefunded
	}
	return out
}

func lastFour(masked string) string {
	masked = strings.TrimSpace(masked)
	if len(masked) <= 4 {
		return masked
	}
	return masked[len(masked)-4:]
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
