package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

// AddPaymentMethod attaches a payment method to a customer. Legacy card
// tokens (tok_...) are first converted into a PaymentMethod.
func (a *Adapter) AddPaymentMethod(ctx context.Context, customerID, token string, setDefault bool) (*domain.PaymentMethod, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.NewValidationError("token", "payment method token is required")
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}

	paymentMethodID := token
	if strings.HasPrefix(token, "tok_") {
		var created stripePaymentMethod
		if err := a.client.Do(ctx, transport.Request{
			Method:         http.MethodPost,
			Path:           "/v1/payment_methods",
			Form:           url.Values{"type": {"card"}, "card[token]": {token}},
			IdempotencyKey: uuid.NewString(),
		}, &created); err != nil {
			return nil, err
		}
		paymentMethodID = created.ID
	}

	var pm stripePaymentMethod
	err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/payment_methods/" + url.PathEscape(paymentMethodID) + "/attach",
		Form:   url.Values{"customer": {customerID}},
	}, &pm)
	if err != nil {
		var perr *domain.Error
		if !errors.As(err, &perr) || !alreadyAttached(perr.Message) {
			return nil, err
		}
		a.log.Debug("payment method already attached", zap.String("payment_method_id", paymentMethodID))
		if pm, err = a.retrievePaymentMethod(ctx, paymentMethodID); err != nil {
			return nil, err
		}
	}

	if setDefault {
		if err := a.setInvoiceDefault(ctx, customerID, pm.ID); err != nil {
			return nil, err
		}
		return mapPaymentMethod(pm, pm.ID), nil
	}
	return mapPaymentMethod(pm, ""), nil
}

func (a *Adapter) ListPaymentMethods(ctx context.Context, customerID string) ([]*domain.PaymentMethod, error) {
	customer, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var list stripePaymentMethodList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/customers/" + url.PathEscape(customerID) + "/payment_methods",
	}, &list); err != nil {
		return nil, err
	}

	defaultID := customer.defaultPaymentMethodID()
	result := make([]*domain.PaymentMethod, 0, len(list.Data))
	for _, pm := range list.Data {
		result = append(result, mapPaymentMethod(pm, defaultID))
	}
	return result, nil
}

func (a *Adapter) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*domain.PaymentMethod, error) {
	pm, err := a.retrievePaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if pm.Customer != "" && pm.Customer != customerID {
		return nil, domain.NewPaymentMethodError(domain.ProviderStripe, "payment_method_customer_mismatch", "payment method belongs to another customer")
	}
	if err := a.setInvoiceDefault(ctx, customerID, pm.ID); err != nil {
		return nil, err
	}
	return mapPaymentMethod(pm, pm.ID), nil
}

func (a *Adapter) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	return a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/payment_methods/" + url.PathEscape(paymentMethodID) + "/detach",
	}, nil)
}

func (a *Adapter) retrievePaymentMethod(ctx context.Context, id string) (stripePaymentMethod, error) {
	var pm stripePaymentMethod
	err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/payment_methods/" + url.PathEscape(id),
	}, &pm)
	return pm, err
}

func (a *Adapter) setInvoiceDefault(ctx context.Context, customerID, paymentMethodID string) error {
	return a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/customers/" + url.PathEscape(customerID),
		Form:   url.Values{"invoice_settings[default_payment_method]": {paymentMethodID}},
	}, nil)
}

func alreadyAttached(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "already attached") || strings.Contains(message, "already been attached")
}
