package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

type PaymentInput struct {
	Amount   int64
	Currency string
	// PaymentMethodID falls back to the customer's default when empty.
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
	IdempotencyKey  string
}

// CreateOneTimePayment charges the bound customer. The idempotency key is
// fixed before the first attempt so retries cannot double charge.
func (s *Service) CreateOneTimePayment(ctx context.Context, in PaymentInput) (*domain.Charge, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	if strings.TrimSpace(in.Currency) == "" {
		return nil, domain.NewValidationError("currency", "currency is required")
	}

	methodID := in.PaymentMethodID
	if methodID == "" {
		def, err := s.DefaultPaymentMethod(ctx)
		if err != nil && !isUnavailable(err) {
			return nil, err
		}
		if def != nil {
			methodID = def.ID
		}
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	charge := domain.CreateChargeInput{
		CustomerID:      customerID,
		Amount:          in.Amount,
		Currency:        domain.NormalizeCurrency(in.Currency),
		PaymentMethodID: methodID,
		Description:     in.Description,
		Metadata:        in.Metadata,
		IdempotencyKey:  key,
	}
	return call(ctx, s, "create_charge", func(ctx context.Context) (*domain.Charge, error) {
		return s.processor.CreateCharge(ctx, charge)
	})
}

// RefundPayment refunds amount minor units; zero refunds the remainder.
func (s *Service) RefundPayment(ctx context.Context, chargeID string, amount int64, reason string) (*domain.Charge, error) {
	if _, err := s.customerID(ctx); err != nil {
		return nil, err
	}
	if err := requireID("charge_id", chargeID); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, domain.NewValidationError("amount", "refund amount must not be negative")
	}
	return call(ctx, s, "refund_charge", func(ctx context.Context) (*domain.Charge, error) {
		return s.processor.RefundCharge(ctx, chargeID, amount, reason)
	})
}

func (s *Service) Payment(ctx context.Context, chargeID string) (*domain.Charge, error) {
	if _, err := s.customerID(ctx); err != nil {
		return nil, err
	}
	if err := requireID("charge_id", chargeID); err != nil {
		return nil, err
	}
	return call(ctx, s, "get_charge", func(ctx context.Context) (*domain.Charge, error) {
		return s.processor.GetCharge(ctx, chargeID)
	})
}

func (s *Service) PaymentHistory(ctx context.Context) ([]*domain.Charge, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	return call(ctx, s, "list_charges", func(ctx context.Context) ([]*domain.Charge, error) {
		return s.processor.ListCharges(ctx, customerID)
	})
}

// CreateCheckout opens a hosted checkout for the bound customer.
func (s *Service) CreateCheckout(ctx context.Context, in domain.CheckoutInput) (*domain.CheckoutSession, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	creator, ok := s.processor.(domain.CheckoutCreator)
	if !ok {
		return nil, domain.Unsupported(s.processor.Provider(), "hosted checkout")
	}
	if in.CustomerID == "" {
		in.CustomerID = customerID
	}
	if in.CustomerEmail == "" {
		in.CustomerEmail, _, _ = s.storage.Get(ctx, KeyCustomerEmail)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return call(ctx, s, "create_checkout", func(ctx context.Context) (*domain.CheckoutSession, error) {
		return creator.CreateCheckout(ctx, in)
	})
}

// VerifyWebhook is not bound to a customer and needs no initialization.
func (s *Service) VerifyWebhook(payload []byte, signature, secret string) bool {
	return s.processor.VerifySignature(payload, signature, secret)
}

func (s *Service) ParseWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	return s.processor.ParseWebhook(ctx, payload, signature)
}
