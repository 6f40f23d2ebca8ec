package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures. Only KindNetwork is retried by the orchestration
// layer.
type Kind string

const (
	KindNetwork              Kind = "network"
	KindAuthentication       Kind = "authentication"
	KindValidation           Kind = "validation"
	KindCustomerNotFound     Kind = "customer_not_found"
	KindSubscriptionNotFound Kind = "subscription_not_found"
	KindPaymentMethod        Kind = "payment_method"
	KindChargeNotFound       Kind = "charge_not_found"
	KindProcessor            Kind = "processor"
	KindWebhook              Kind = "webhook"
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindPayment              Kind = "payment"
)

const (
	CodeUnsupportedOperation = "unsupported_operation"
	CodeNotImplemented       = "not_implemented"
	CodeRateLimitExceeded    = "rate_limit_exceeded"
	CodeInvalidSignature     = "invalid_signature"
	CodeInvalidPayload       = "invalid_payload"
	CodeNotInitialized       = "not_initialized"
	CodeCardDeclined         = "card_declined"
	CodeNotFound             = "not_found"
)

// Error is the single failure type returned by adapters and the orchestration
// service. Message is human readable; Code is the provider (or canonical) code
// callers may branch on.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Provider   Provider
	Field      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Provider != "" {
		b.WriteString(" [")
		b.WriteString(string(e.Provider))
		b.WriteString("]")
	}
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Field != "" {
		b.WriteString(" field=")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, and by code when the sentinel carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrNetwork              = &Error{Kind: KindNetwork}
	ErrAuthentication       = &Error{Kind: KindAuthentication}
	ErrValidation           = &Error{Kind: KindValidation}
	ErrCustomerNotFound     = &Error{Kind: KindCustomerNotFound}
	ErrSubscriptionNotFound = &Error{Kind: KindSubscriptionNotFound}
	ErrPaymentMethod        = &Error{Kind: KindPaymentMethod}
	ErrChargeNotFound       = &Error{Kind: KindChargeNotFound}
	ErrProcessor            = &Error{Kind: KindProcessor}
	ErrWebhook              = &Error{Kind: KindWebhook}
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrPayment              = &Error{Kind: KindPayment}

	ErrUnsupportedOperation = &Error{Kind: KindProcessor, Code: CodeUnsupportedOperation}
	ErrNotImplemented       = &Error{Kind: KindProcessor, Code: CodeNotImplemented}
	ErrRateLimited          = &Error{Kind: KindProcessor, Code: CodeRateLimitExceeded}
	ErrInvalidSignature     = &Error{Kind: KindWebhook, Code: CodeInvalidSignature}
	ErrInvalidPayload       = &Error{Kind: KindWebhook, Code: CodeInvalidPayload}
	ErrNotInitialized       = &Error{Kind: KindPayment, Code: CodeNotInitialized}
)

// KindOf returns the kind of a taxonomy error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient network failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func NewNetworkError(provider Provider, err error) *Error {
	return &Error{Kind: KindNetwork, Provider: provider, Message: "network request failed", Err: err}
}

func NewAuthenticationError(provider Provider, message string) *Error {
	return &Error{Kind: KindAuthentication, Provider: provider, Message: message}
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NewCustomerNotFoundError(provider Provider, message string) *Error {
	return &Error{Kind: KindCustomerNotFound, Provider: provider, Code: CodeNotFound, Message: message}
}

func NewSubscriptionNotFoundError(provider Provider, message string) *Error {
	return &Error{Kind: KindSubscriptionNotFound, Provider: provider, Code: CodeNotFound, Message: message}
}

func NewChargeNotFoundError(provider Provider, message string) *Error {
	return &Error{Kind: KindChargeNotFound, Provider: provider, Code: CodeNotFound, Message: message}
}

func NewPaymentMethodError(provider Provider, code, message string) *Error {
	return &Error{Kind: KindPaymentMethod, Provider: provider, Code: code, Message: message}
}

func NewProcessorError(provider Provider, code, message string) *Error {
	return &Error{Kind: KindProcessor, Provider: provider, Code: code, Message: message}
}

func NewWebhookError(provider Provider, code, message string) *Error {
	return &Error{Kind: KindWebhook, Provider: provider, Code: code, Message: message}
}

func NewInvalidConfigurationError(field, message string) *Error {
	return &Error{Kind: KindInvalidConfiguration, Field: field, Message: message}
}

func NewPaymentError(code, message string) *Error {
	return &Error{Kind: KindPayment, Code: code, Message: message}
}

// Unsupported is returned when the provider has no such capability.
func Unsupported(provider Provider, operation string) *Error {
	return &Error{
		Kind:     KindProcessor,
		Provider: provider,
		Code:     CodeUnsupportedOperation,
		Message:  fmt.Sprintf("%s is not supported by %s", operation, provider),
	}
}

// NotImplemented is returned when the provider documents no endpoint for the
// operation.
func NotImplemented(provider Provider, operation string) *Error {
	return &Error{
		Kind:     KindProcessor,
		Provider: provider,
		Code:     CodeNotImplemented,
		Message:  fmt.Sprintf("%s has no documented %s endpoint", provider, operation),
	}
}
