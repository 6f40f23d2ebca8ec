package transport

import (
	"errors"
	"net/http"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

var declineCodes = map[string]struct{}{
	"card_declined":                {},
	"insufficient_funds":           {},
	"insufficient_balance":         {},
	"expired_card":                 {},
	"card_expired":                 {},
	"incorrect_cvc":                {},
	"invalid_cvc":                  {},
	"invalid_cvn":                  {},
	"incorrect_number":             {},
	"lost_card":                    {},
	"stolen_card":                  {},
	"do_not_honor":                 {},
	"generic_decline":              {},
	"processor_declined":           {},
	"fraudulent":                   {},
	"authentication_required":      {},
	"payment_method_not_available": {},
}

// IsDeclineCode reports whether code belongs to the card-decline family.
func IsDeclineCode(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	_, ok := declineCodes[code]
	return ok
}

// ProviderError is what a provider error decoder extracts from a response.
type ProviderError struct {
	Message string
	Code    string
	// Structured is false when the body carried no recognizable error shape.
	Structured bool
}

// MapError turns an HTTP failure into the canonical taxonomy. The same table
// applies to every provider.
func MapError(provider domain.Provider, status int, perr ProviderError) *domain.Error {
	message := strings.TrimSpace(perr.Message)
	if message == "" {
		message = http.StatusText(status)
	}
	lower := strings.ToLower(message)

	e := &domain.Error{
		Provider:   provider,
		Code:       perr.Code,
		Message:    message,
		StatusCode: status,
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = domain.KindAuthentication
	case IsDeclineCode(perr.Code) || status == http.StatusPaymentRequired:
		e.Kind = domain.KindPaymentMethod
	case status == http.StatusNotFound:
		e.Kind = notFoundKind(lower)
		if e.Code == "" {
			e.Code = domain.CodeNotFound
		}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = domain.KindValidation
	case status == http.StatusTooManyRequests:
		e.Kind = domain.KindProcessor
		e.Code = domain.CodeRateLimitExceeded
	case status >= http.StatusInternalServerError && !perr.Structured:
		e.Kind = domain.KindNetwork
	default:
		e.Kind = domain.KindProcessor
	}
	return e
}

func notFoundKind(message string) domain.Kind {
	switch {
	case strings.Contains(message, "customer"):
		return domain.KindCustomerNotFound
	case strings.Contains(message, "subscription"):
		return domain.KindSubscriptionNotFound
	case strings.Contains(message, "payment method"), strings.Contains(message, "payment_method"), strings.Contains(message, "paymentmethod"):
		return domain.KindPaymentMethod
	case strings.Contains(message, "charge"), strings.Contains(message, "payment"),
		strings.Contains(message, "order"), strings.Contains(message, "transaction"):
		return domain.KindChargeNotFound
	default:
		return domain.KindProcessor
	}
}

// NotFoundAs swaps a generic 404 processor error for replacement. Providers
// whose not-found messages do not name the entity rely on it.
func NotFoundAs(err error, replacement *domain.Error) error {
	var perr *domain.Error
	if errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound && perr.Kind == domain.KindProcessor {
		replacement.StatusCode = perr.StatusCode
		if perr.Code != "" && perr.Code != domain.CodeNotFound {
			replacement.Code = perr.Code
		}
		replacement.Err = perr
		return replacement
	}
	return err
}
