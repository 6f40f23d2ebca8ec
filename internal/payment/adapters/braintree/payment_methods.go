package braintree

import (
	"context"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

// AddPaymentMethod vaults a single-use nonce against the customer. Braintree
// makes the first vaulted method the default and offers no GraphQL mutation
// to move it, so setDefault only holds for a customer's first method.
func (a *Adapter) AddPaymentMethod(ctx context.Context, customerID, token string, setDefault bool) (*domain.PaymentMethod, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.NewValidationError("token", "payment method nonce is required")
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}

	var out struct {
		VaultPaymentMethod struct {
			PaymentMethod btPaymentMethod `json:"paymentMethod"`
		} `json:"vaultPaymentMethod"`
	}
	if err := a.query(ctx, `mutation Vault($input: VaultPaymentMethodInput!) {
  vaultPaymentMethod(input: $input) { paymentMethod { `+paymentMethodFields+` } }
}`, map[string]any{"input": map[string]any{
		"paymentMethodId": token,
		"customerId":      customerID,
	}}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderBraintree, "customer "+customerID+" not found"))
	}

	vaulted := out.VaultPaymentMethod.PaymentMethod
	customer, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	pm := mapPaymentMethod(vaulted, customerID, defaultID(customer))
	if setDefault && !pm.IsDefault {
		a.log.Warn("braintree cannot promote a vaulted payment method to default",
			zap.String("customer_id", customerID),
			zap.String("payment_method_id", pm.ID),
		)
	}
	return pm, nil
}

func (a *Adapter) ListPaymentMethods(ctx context.Context, customerID string) ([]*domain.PaymentMethod, error) {
	customer, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	def := defaultID(customer)
	out := make([]*domain.PaymentMethod, 0, len(customer.PaymentMethods.Edges))
	for _, edge := range customer.PaymentMethods.Edges {
		out = append(out, mapPaymentMethod(edge.Node, customerID, def))
	}
	return out, nil
}

func (a *Adapter) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*domain.PaymentMethod, error) {
	return nil, domain.NotImplemented(domain.ProviderBraintree, "set_default_payment_method")
}

func (a *Adapter) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	if strings.TrimSpace(paymentMethodID) == "" {
		return domain.NewValidationError("payment_method_id", "payment method id is required")
	}
	err := a.query(ctx, `mutation Delete($input: DeletePaymentMethodFromVaultInput!) {
  deletePaymentMethodFromVault(input: $input) { clientMutationId }
}`, map[string]any{"input": map[string]any{"paymentMethodId": paymentMethodID}}, nil)
	if err != nil {
		return transport.NotFoundAs(err, domain.NewPaymentMethodError(domain.ProviderBraintree, domain.CodeNotFound, "payment method "+paymentMethodID+" not found"))
	}
	return nil
}

func defaultID(c *btCustomer) string {
	if c == nil || c.DefaultPaymentMethod == nil {
		return ""
	}
	return c.DefaultPaymentMethod.ID
}
