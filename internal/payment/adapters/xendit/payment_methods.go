package xendit

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// AddPaymentMethod turns a Xendit.js card token into a multi-use payment
// method. The default is tracked in customer metadata; Xendit has no notion
// of one.
func (a *Adapter) AddPaymentMethod(ctx context.Context, customerID, token string, setDefault bool) (*domain.PaymentMethod, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.NewValidationError("token", "payment method token is required")
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}

	body := map[string]any{
		"type":        "CARD",
		"reusability": "MULTIPLE_USE",
		"customer_id": customerID,
		"card": map[string]any{
			"currency": a.cfg.currency(""),
			"token_id": token,
		},
	}
	var pm xenditPaymentMethod
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/v2/payment_methods",
		JSON:           body,
		IdempotencyKey: uuid.NewString(),
	}, &pm); err != nil {
		return nil, err
	}

	if !setDefault {
		return mapPaymentMethod(pm, ""), nil
	}
	if _, err := a.UpdateCustomer(ctx, customerID, domain.UpdateCustomerInput{
		Metadata: map[string]string{metadataDefaultPaymentMethod: pm.ID},
	}); err != nil {
		return nil, err
	}
	return mapPaymentMethod(pm, pm.ID), nil
}

func (a *Adapter) ListPaymentMethods(ctx context.Context, customerID string) ([]*domain.PaymentMethod, error) {
	customer, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var list xenditPaymentMethodList
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v2/payment_methods",
		Query:  url.Values{"customer_id": {customerID}, "status": {"ACTIVE"}},
	}, &list); err != nil {
		return nil, err
	}

	defaultID := customer.Metadata[metadataDefaultPaymentMethod]
	out := make([]*domain.PaymentMethod, 0, len(list.Data))
	for _, pm := range list.Data {
		out = append(out, mapPaymentMethod(pm, defaultID))
	}
	return out, nil
}

func (a *Adapter) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*domain.PaymentMethod, error) {
	pm, err := a.retrievePaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if pm.CustomerID != "" && pm.CustomerID != customerID {
		return nil, domain.NewPaymentMethodError(domain.ProviderXendit, "payment_method_customer_mismatch", "payment method belongs to another customer")
	}
	if _, err := a.UpdateCustomer(ctx, customerID, domain.UpdateCustomerInput{
		Metadata: map[string]string{metadataDefaultPaymentMethod: pm.ID},
	}); err != nil {
		return nil, err
	}
	return mapPaymentMethod(*pm, pm.ID), nil
}

// RemovePaymentMethod expires the method; Xendit never deletes them.
func (a *Adapter) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	if strings.TrimSpace(paymentMethodID) == "" {
		return domain.NewValidationError("payment_method_id", "payment method id is required")
	}
	return a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v2/payment_methods/" + url.PathEscape(paymentMethodID) + "/expire",
	}, nil)
}

func (a *Adapter) retrievePaymentMethod(ctx context.Context, id string) (*xenditPaymentMethod, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("payment_method_id", "payment method id is required")
	}
	var pm xenditPaymentMethod
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v2/payment_methods/" + url.PathEscape(id),
	}, &pm); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewPaymentMethodError(domain.ProviderXendit, domain.CodeNotFound, "payment method "+id+" not found"))
	}
	return &pm, nil
}
