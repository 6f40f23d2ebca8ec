package braintree

import (
	"strconv"
	"strings"
	"time"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type btCustomFields []struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type btCustomer struct {
	ID                   string         `json:"id"`
	Email                string         `json:"email"`
	FirstName            string         `json:"firstName"`
	LastName             string         `json:"lastName"`
	PhoneNumber          string         `json:"phoneNumber"`
	CreatedAt            string         `json:"createdAt"`
	CustomFields         btCustomFields `json:"customFields"`
	DefaultPaymentMethod *struct {
		ID string `json:"id"`
	} `json:"defaultPaymentMethod"`
	PaymentMethods struct {
		Edges []struct {
			Node btPaymentMethod `json:"node"`
		} `json:"edges"`
	} `json:"paymentMethods"`
}

const paymentMethodFields = `id usage createdAt customer { id }
details { __typename
  ... on CreditCardDetails { brandCode last4 expirationMonth expirationYear }
  ... on PayPalAccountDetails { email }
  ... on VenmoAccountDetails { username }
  ... on UsBankAccountDetails { last4 bankName } }`

type btPaymentMethod struct {
	ID        string `json:"id"`
	Usage     string `json:"usage"`
	CreatedAt string `json:"createdAt"`
	Customer  *struct {
		ID string `json:"id"`
	} `json:"customer"`
	Details struct {
		Typename        string `json:"__typename"`
		BrandCode       string `json:"brandCode"`
		Last4           string `json:"last4"`
		ExpirationMonth string `json:"expirationMonth"`
		ExpirationYear  string `json:"expirationYear"`
		Email           string `json:"email"`
		Username        string `json:"username"`
		BankName        string `json:"bankName"`
	} `json:"details"`
}

type btMoney struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currencyCode"`
}

const transactionFields = `id orderId status createdAt
amount { value currencyCode }
customer { id }
customFields { name value }
processorResponse { legacyCode message }
refunds { id status amount { value currencyCode } }`

type btTransaction struct {
	ID           string         `json:"id"`
	OrderID      string         `json:"orderId"`
	Status       string         `json:"status"`
	CreatedAt    string         `json:"createdAt"`
	Amount       btMoney        `json:"amount"`
	CustomFields btCustomFields `json:"customFields"`
	Customer     *struct {
		ID string `json:"id"`
	} `json:"customer"`
	ProcessorResponse *struct {
		LegacyCode string `json:"legacyCode"`
		Message    string `json:"message"`
	} `json:"processorResponse"`
	Refunds []struct {
		ID     string  `json:"id"`
		Status string  `json:"status"`
		Amount btMoney `json:"amount"`
	} `json:"refunds"`
}

// subscriptionStatuses covers the statuses carried by subscription webhooks.
var subscriptionStatuses = domain.StatusMap{
	"active":   domain.SubscriptionStatusActive,
	"past_due": domain.SubscriptionStatusPastDue,
	"pending":  domain.SubscriptionStatusIncomplete,
	"canceled": domain.SubscriptionStatusCanceled,
	"expired":  domain.SubscriptionStatusCanceled,
}

func (f btCustomFields) toMap() map[string]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]string, len(f))
	for _, field := range f {
		out[field.Name] = field.Value
	}
	return out
}

func mapCustomer(c btCustomer) *domain.Customer {
	created := parseTime(c.CreatedAt)
	return &domain.Customer{
		ID:                  c.ID,
		Email:               c.Email,
		Name:                strings.TrimSpace(c.FirstName + " " + c.LastName),
		Phone:               c.PhoneNumber,
		Processor:           domain.ProviderBraintree,
		ProcessorCustomerID: c.ID,
		Metadata:            c.CustomFields.toMap(),
		CreatedAt:           created,
		UpdatedAt:           created,
	}
}

func mapPaymentMethod(pm btPaymentMethod, customerID, defaultID string) *domain.PaymentMethod {
	if pm.Customer != nil && pm.Customer.ID != "" {
		customerID = pm.Customer.ID
	}
	out := &domain.PaymentMethod{
		ID:         pm.ID,
		CustomerID: customerID,
		IsDefault:  defaultID != "" && pm.ID == defaultID,
		Processor:  domain.ProviderBraintree,
	}
	d := pm.Details
	switch d.Typename {
	case "CreditCardDetails":
		out.Type = domain.PaymentMethodTypeCard
		out.Brand = strings.ToLower(d.BrandCode)
		out.Last4 = d.Last4
		out.ExpMonth, _ = strconv.Atoi(d.ExpirationMonth)
		out.ExpYear, _ = strconv.Atoi(d.ExpirationYear)
	case "PayPalAccountDetails":
		out.Type = domain.PaymentMethodTypePayPal
		if d.Email != "" {
			out.BillingDetails = &domain.BillingDetails{Email: d.Email}
		}
	case "UsBankAccountDetails":
		out.Type = domain.PaymentMethodTypeBankAccount
		out.Last4 = d.Last4
		out.Brand = d.BankName
	default:
		out.Type = domain.PaymentMethodTypeWallet
	}
	return out
}

func mapTransaction(t btTransaction) *domain.Charge {
	currency := domain.NormalizeCurrency(t.Amount.CurrencyCode)
	amount, _ := domain.ParseMajor(t.Amount.Value, currency)
	out := &domain.Charge{
		ID:                t.ID,
		Amount:            amount,
		Currency:          currency,
		Processor:         domain.ProviderBraintree,
		ProcessorChargeID: t.ID,
		CreatedAt:         parseTime(t.CreatedAt),
		Metadata:          t.CustomFields.toMap(),
	}
	if t.Customer != nil {
		out.CustomerID = t.Customer.ID
	}
	for _, r := range t.Refunds {
		if refundFailed(r.Status) {
			continue
		}
		refunded, _ := domain.ParseMajor(r.Amount.Value, currency)
		out.RefundedAmount += refunded
	}
	if out.RefundedAmount > out.Amount {
		out.RefundedAmount = out.Amount
	}
	out.Status = transactionStatus(t.Status)
	if out.Amount > 0 && out.RefundedAmount >= out.Amount {
		out.Refunded = true
		out.Status = domain.ChargeStatusRefunded
	}
	return out
}

func transactionStatus(status string) domain.ChargeStatus {
	switch strings.ToUpper(status) {
	case "AUTHORIZED", "SUBMITTED_FOR_SETTLEMENT", "SETTLING", "SETTLED":
		return domain.ChargeStatusSucceeded
	case "PROCESSOR_DECLINED", "GATEWAY_REJECTED", "FAILED", "SETTLEMENT_DECLINED",
		"AUTHORIZATION_EXPIRED", "VOIDED":
		return domain.ChargeStatusFailed
	default:
		return domain.ChargeStatusPending
	}
}

func refundFailed(status string) bool {
	switch strings.ToUpper(status) {
	case "PROCESSOR_DECLINED", "GATEWAY_REJECTED", "FAILED", "SETTLEMENT_DECLINED", "VOIDED":
		return true
	}
	return false
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
