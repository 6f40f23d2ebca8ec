package braintree

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

// CreateCharge charges a vaulted payment method and submits it for settlement.
// The amount is in the merchant account's currency.
func (a *Adapter) CreateCharge(ctx context.Context, input domain.CreateChargeInput) (*domain.Charge, error) {
	if input.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	if strings.TrimSpace(input.PaymentMethodID) == "" {
		return nil, domain.NewValidationError("payment_method_id", "payment method is required")
	}
	orderID := input.IdempotencyKey
	if orderID == "" {
		orderID = uuid.NewString()
	}

	transaction := map[string]any{
		"amount":  domain.ToMajorString(input.Amount, input.Currency),
		"orderId": orderID,
	}
	if a.cfg.MerchantAccountID != "" {
		transaction["merchantAccountId"] = a.cfg.MerchantAccountID
	}
	if len(input.Metadata) > 0 {
		fields := make([]map[string]string, 0, len(input.Metadata))
		for k, v := range input.Metadata {
			fields = append(fields, map[string]string{"name": k, "value": v})
		}
		transaction["customFields"] = fields
	}

	var out struct {
		ChargePaymentMethod struct {
			Transaction btTransaction `json:"transaction"`
		} `json:"chargePaymentMethod"`
	}
	if err := a.query(ctx, `mutation Charge($input: ChargePaymentMethodInput!) {
  chargePaymentMethod(input: $input) { transaction { `+transactionFields+` } }
}`, map[string]any{"input": map[string]any{
		"paymentMethodId": input.PaymentMethodID,
		"transaction":     transaction,
	}}, &out); err != nil {
		return nil, err
	}

	tx := out.ChargePaymentMethod.Transaction
	if transactionStatus(tx.Status) == domain.ChargeStatusFailed && tx.ProcessorResponse != nil {
		return nil, domain.NewPaymentMethodError(domain.ProviderBraintree, domain.CodeCardDeclined, tx.ProcessorResponse.Message)
	}
	charge := mapTransaction(tx)
	if charge.CustomerID == "" {
		charge.CustomerID = input.CustomerID
	}
	charge.Description = input.Description
	a.log.Info("braintree charge created",
		zap.String("charge_id", charge.ID),
		zap.String("status", tx.Status),
	)
	return charge, nil
}

func (a *Adapter) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, domain.NewValidationError("charge_id", "charge id is required")
	}
	var out struct {
		Node *btTransaction `json:"node"`
	}
	if err := a.query(ctx, `query Transaction($id: ID!) {
  node(id: $id) { ... on Transaction { `+transactionFields+` } }
}`, map[string]any{"id": chargeID}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewChargeNotFoundError(domain.ProviderBraintree, "transaction "+chargeID+" not found"))
	}
	if out.Node == nil || out.Node.ID == "" {
		return nil, domain.NewChargeNotFoundError(domain.ProviderBraintree, "transaction "+chargeID+" not found")
	}
	return mapTransaction(*out.Node), nil
}

func (a *Adapter) ListCharges(ctx context.Context, customerID string) ([]*domain.Charge, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	var out struct {
		Search struct {
			Transactions struct {
				Edges []struct {
					Node btTransaction `json:"node"`
				} `json:"edges"`
			} `json:"transactions"`
		} `json:"search"`
	}
	if err := a.query(ctx, `query Transactions($input: TransactionSearchInput!) {
  search { transactions(input: $input, first: 50) { edges { node { `+transactionFields+` } } } }
}`, map[string]any{"input": map[string]any{
		"customer": map[string]any{"id": map[string]any{"is": customerID}},
	}}, &out); err != nil {
		return nil, err
	}
	charges := make([]*domain.Charge, 0, len(out.Search.Transactions.Edges))
	for _, edge := range out.Search.Transactions.Edges {
		c := mapTransaction(edge.Node)
		if c.CustomerID == "" {
			c.CustomerID = customerID
		}
		charges = append(charges, c)
	}
	return charges, nil
}

func (a *Adapter) RefundCharge(ctx context.Context, chargeID string, amount int64, reason string) (*domain.Charge, error) {
	charge, err := a.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	amount, err = charge.ResolveRefund(amount)
	if err != nil {
		return nil, err
	}

	refund := map[string]any{"amount": domain.ToMajorString(amount, charge.Currency)}
	if reason != "" {
		refund["orderId"] = truncate(reason, 255)
	}
	if err := a.query(ctx, `mutation Refund($input: RefundTransactionInput!) {
  refundTransaction(input: $input) { refund { id status } }
}`, map[string]any{"input": map[string]any{
		"transactionId": chargeID,
		"refund":        refund,
	}}, nil); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewChargeNotFoundError(domain.ProviderBraintree, "transaction "+chargeID+" not found"))
	}
	a.log.Info("braintree refund created", zap.String("charge_id", chargeID), zap.Int64("amount", amount))
	return a.GetCharge(ctx, chargeID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
