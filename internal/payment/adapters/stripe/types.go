package stripe

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type stripeCustomer struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	Name            string            `json:"name"`
	Phone           string            `json:"phone"`
	Created         int64             `json:"created"`
	Deleted         bool              `json:"deleted"`
	Metadata        map[string]string `json:"metadata"`
	InvoiceSettings struct {
		DefaultPaymentMethod json.RawMessage `json:"default_payment_method"`
	} `json:"invoice_settings"`
}

// defaultPaymentMethodID handles both the plain id and the expanded object.
func (c stripeCustomer) defaultPaymentMethodID() string {
	return expandableID(c.InvoiceSettings.DefaultPaymentMethod)
}

type stripePaymentMethod struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Customer       string `json:"customer"`
	BillingDetails struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address struct {
			Line1      string `json:"line1"`
			Line2      string `json:"line2"`
			City       string `json:"city"`
			State      string `json:"state"`
			PostalCode string `json:"postal_code"`
			Country    string `json:"country"`
		} `json:"address"`
	} `json:"billing_details"`
	Card *struct {
		Last4    string `json:"last4"`
		Brand    string `json:"brand"`
		ExpMonth int    `json:"exp_month"`
		ExpYear  int    `json:"exp_year"`
		Wallet   *struct {
			Type string `json:"type"`
		} `json:"wallet"`
	} `json:"card"`
	USBankAccount *struct {
		Last4 string `json:"last4"`
	} `json:"us_bank_account"`
	SepaDebit *struct {
		Last4 string `json:"last4"`
	} `json:"sepa_debit"`
}

type stripePaymentMethodList struct {
	Data []stripePaymentMethod `json:"data"`
}

type stripePrice struct {
	ID         string `json:"id"`
	Product    string `json:"product"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type stripeSubscriptionItem struct {
	ID                 string      `json:"id"`
	Quantity           int         `json:"quantity"`
	Price              stripePrice `json:"price"`
	CurrentPeriodStart int64       `json:"current_period_start"`
	CurrentPeriodEnd   int64       `json:"current_period_end"`
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	TrialStart         int64             `json:"trial_start"`
	TrialEnd           int64             `json:"trial_end"`
	CanceledAt         int64             `json:"canceled_at"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Currency           string            `json:"currency"`
	Metadata           map[string]string `json:"metadata"`
	PauseCollection    *struct {
		Behavior string `json:"behavior"`
	} `json:"pause_collection"`
	Items struct {
		Data []stripeSubscriptionItem `json:"data"`
	} `json:"items"`
}

type stripeSubscriptionList struct {
	Data []stripeSubscription `json:"data"`
}

type stripeCharge struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
}

type stripePaymentIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Customer       string            `json:"customer"`
	Description    string            `json:"description"`
	Status         string            `json:"status"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
	LatestCharge   json.RawMessage   `json:"latest_charge"`
}

type stripePaymentIntentList struct {
	Data []stripePaymentIntent `json:"data"`
}

var subscriptionStatuses = domain.StatusMap{
	"trialing":           domain.SubscriptionStatusTrialing,
	"active":             domain.SubscriptionStatusActive,
	"past_due":           domain.SubscriptionStatusPastDue,
	"unpaid":             domain.SubscriptionStatusPastDue,
	"canceled":           domain.SubscriptionStatusCanceled,
	"incomplete_expired": domain.SubscriptionStatusCanceled,
	"incomplete":         domain.SubscriptionStatusIncomplete,
	"paused":             domain.SubscriptionStatusPaused,
}

func mapCustomer(c stripeCustomer) *domain.Customer {
	created := unixTime(c.Created)
	return &domain.Customer{
		ID:                  c.ID,
		Email:               c.Email,
		Name:                c.Name,
		Phone:               c.Phone,
		Processor:           domain.ProviderStripe,
		ProcessorCustomerID: c.ID,
		Metadata:            c.Metadata,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

func mapPaymentMethod(pm stripePaymentMethod, defaultID string) *domain.PaymentMethod {
	out := &domain.PaymentMethod{
		ID:         pm.ID,
		CustomerID: pm.Customer,
		Type:       domain.PaymentMethodTypeCard,
		IsDefault:  pm.ID != "" && pm.ID == defaultID,
		Processor:  domain.ProviderStripe,
	}
	switch pm.Type {
	case "card":
		if pm.Card != nil {
			out.Last4 = pm.Card.Last4
			out.Brand = pm.Card.Brand
			out.ExpMonth = pm.Card.ExpMonth
			out.ExpYear = pm.Card.ExpYear
			if pm.Card.Wallet != nil && pm.Card.Wallet.Type != "" {
				out.Type = domain.PaymentMethodTypeWallet
			}
		}
	case "us_bank_account":
		out.Type = domain.PaymentMethodTypeBankAccount
		if pm.USBankAccount != nil {
			out.Last4 = pm.USBankAccount.Last4
		}
	case "sepa_debit":
		out.Type = domain.PaymentMethodTypeBankAccount
		if pm.SepaDebit != nil {
			out.Last4 = pm.SepaDebit.Last4
		}
	case "paypal":
		out.Type = domain.PaymentMethodTypePayPal
	case "link", "cashapp", "apple_pay", "google_pay":
		out.Type = domain.PaymentMethodTypeWallet
	}

	bd := pm.BillingDetails
	if bd.Name != "" || bd.Email != "" || bd.Address.Line1 != "" || bd.Address.Country != "" {
		out.BillingDetails = &domain.BillingDetails{
			Name:       bd.Name,
			Email:      bd.Email,
			Phone:      bd.Phone,
			Line1:      bd.Address.Line1,
			Line2:      bd.Address.Line2,
			City:       bd.Address.City,
			State:      bd.Address.State,
			PostalCode: bd.Address.PostalCode,
			Country:    bd.Address.Country,
		}
	}
	return out
}

func mapSubscription(s stripeSubscription) *domain.Subscription {
	out := &domain.Subscription{
		ID:                      s.ID,
		CustomerID:              s.Customer,
		Status:                  subscriptionStatuses.Map(s.Status),
		CurrentPeriodStart:      unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:        unixTime(s.CurrentPeriodEnd),
		TrialStart:              unixTimePtr(s.TrialStart),
		TrialEnd:                unixTimePtr(s.TrialEnd),
		CanceledAt:              unixTimePtr(s.CanceledAt),
		CancelAtPeriodEnd:       s.CancelAtPeriodEnd,
		Quantity:                1,
		Currency:                domain.NormalizeCurrency(s.Currency),
		Processor:               domain.ProviderStripe,
		ProcessorSubscriptionID: s.ID,
		Metadata:                s.Metadata,
	}
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.PriceID = item.Price.ID
		out.ProductID = item.Price.Product
		if item.Quantity > 0 {
			out.Quantity = item.Quantity
		}
		out.Amount = item.Price.UnitAmount * int64(out.Quantity)
		if out.Currency == "" {
			out.Currency = domain.NormalizeCurrency(item.Price.Currency)
		}
		if s.CurrentPeriodStart == 0 {
			out.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
			out.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
	}
	if s.PauseCollection != nil && s.PauseCollection.Behavior != "" && out.Status != domain.SubscriptionStatusCanceled {
		out.Status = domain.SubscriptionStatusPaused
	}
	return out
}

func mapCharge(pi stripePaymentIntent) *domain.Charge {
	out := &domain.Charge{
		ID:                pi.ID,
		CustomerID:        pi.Customer,
		Amount:            pi.Amount,
		Currency:          domain.NormalizeCurrency(pi.Currency),
		Description:       pi.Description,
		Processor:         domain.ProviderStripe,
		ProcessorChargeID: pi.ID,
		CreatedAt:         unixTime(pi.Created),
		Metadata:          pi.Metadata,
	}
	switch pi.Status {
	case "succeeded":
		out.Status = domain.ChargeStatusSucceeded
	case "canceled":
		out.Status = domain.ChargeStatusFailed
	case "requires_payment_method":
		if len(pi.LatestCharge) > 0 && string(pi.LatestCharge) != "null" {
			out.Status = domain.ChargeStatusFailed
		} else {
			out.Status = domain.ChargeStatusPending
		}
	default:
		out.Status = domain.ChargeStatusPending
	}

	var charge stripeCharge
	if len(pi.LatestCharge) > 0 && pi.LatestCharge[0] == '{' {
		if err := json.Unmarshal(pi.LatestCharge, &charge); err == nil {
			out.RefundedAmount = charge.AmountRefunded
			if out.RefundedAmount > out.Amount {
				out.RefundedAmount = out.Amount
			}
			out.Refunded = charge.Refunded || (out.Amount > 0 && out.RefundedAmount >= out.Amount)
			if out.Refunded {
				out.Status = domain.ChargeStatusRefunded
			}
		}
	}
	return out
}

func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func unixTime(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0).UTC()
}

func unixTimePtr(value int64) *time.Time {
	if value == 0 {
		return nil
	}
	t := time.Unix(value, 0).UTC()
	return &t
}
