package service

import (
	"context"
	"errors"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

func (s *Service) AddPaymentMethod(ctx context.Context, token string, setDefault bool) (*domain.PaymentMethod, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.NewValidationError("token", "payment method token is required")
	}
	method, err := call(ctx, s, "add_payment_method", func(ctx context.Context) (*domain.PaymentMethod, error) {
		return s.processor.AddPaymentMethod(ctx, customerID, token, setDefault)
	})
	if err != nil {
		return nil, err
	}
	if method.IsDefault {
		s.store(ctx, KeyDefaultPaymentMethod, method)
	}
	return method, nil
}

// ListPaymentMethods refreshes the cached default whenever the processor
// reports one.
func (s *Service) ListPaymentMethods(ctx context.Context) ([]*domain.PaymentMethod, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	methods, err := s.listPaymentMethods(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if def := findDefault(methods); def != nil {
		s.store(ctx, KeyDefaultPaymentMethod, def)
	} else {
		s.invalidate(ctx, KeyDefaultPaymentMethod)
	}
	return methods, nil
}

func (s *Service) listPaymentMethods(ctx context.Context, customerID string) ([]*domain.PaymentMethod, error) {
	return call(ctx, s, "list_payment_methods", func(ctx context.Context) ([]*domain.PaymentMethod, error) {
		return s.processor.ListPaymentMethods(ctx, customerID)
	})
}

func (s *Service) SetDefaultPaymentMethod(ctx context.Context, paymentMethodID string) (*domain.PaymentMethod, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(paymentMethodID) == "" {
		return nil, domain.NewValidationError("payment_method_id", "payment method id is required")
	}
	method, err := call(ctx, s, "set_default_payment_method", func(ctx context.Context) (*domain.PaymentMethod, error) {
		return s.processor.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID)
	})
	if err != nil {
		return nil, err
	}
	method.IsDefault = true
	s.store(ctx, KeyDefaultPaymentMethod, method)
	return method, nil
}

// RemovePaymentMethod detaches a method. When the default goes away while a
// subscription is still live, another stored method is promoted so renewals
// keep a payment source.
func (s *Service) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(paymentMethodID) == "" {
		return domain.NewValidationError("payment_method_id", "payment method id is required")
	}

	wasDefault, err := s.isDefaultPaymentMethod(ctx, customerID, paymentMethodID)
	if err != nil {
		return err
	}

	if _, err := call(ctx, s, "remove_payment_method", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.processor.RemovePaymentMethod(ctx, paymentMethodID)
	}); err != nil {
		return err
	}
	if !wasDefault {
		return nil
	}
	s.invalidate(ctx, KeyDefaultPaymentMethod)

	live, err := s.hasLiveSubscription(ctx, customerID)
	if err != nil || !live {
		return err
	}
	methods, err := s.listPaymentMethods(ctx, customerID)
	if err != nil {
		return err
	}
	for _, candidate := range methods {
		if candidate.ID == paymentMethodID {
			continue
		}
		promoted, err := call(ctx, s, "set_default_payment_method", func(ctx context.Context) (*domain.PaymentMethod, error) {
			return s.processor.SetDefaultPaymentMethod(ctx, customerID, candidate.ID)
		})
		if isUnavailable(err) {
			s.log.Warn("processor cannot promote a new default payment method",
				zap.String("provider", string(s.processor.Provider())),
				zap.Error(err),
			)
			return nil
		}
		if err != nil {
			return err
		}
		promoted.IsDefault = true
		s.store(ctx, KeyDefaultPaymentMethod, promoted)
		return nil
	}
	s.log.Warn("live subscription left without a payment method",
		zap.String("provider", string(s.processor.Provider())),
		zap.String("customer_id", customerID),
	)
	return nil
}

// DefaultPaymentMethod returns the cached default or looks it up. A customer
// with no default yields nil without error.
func (s *Service) DefaultPaymentMethod(ctx context.Context) (*domain.PaymentMethod, error) {
	customerID, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	if def, ok := cached[*domain.PaymentMethod](ctx, s, KeyDefaultPaymentMethod); ok && def != nil {
		return def, nil
	}
	methods, err := s.listPaymentMethods(ctx, customerID)
	if err != nil {
		return nil, err
	}
	def := findDefault(methods)
	if def != nil {
		s.store(ctx, KeyDefaultPaymentMethod, def)
	}
	return def, nil
}

// isDefaultPaymentMethod consults the cached default and falls back to the
// processor's listing when nothing is cached.
func (s *Service) isDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (bool, error) {
	if def, ok := cached[*domain.PaymentMethod](ctx, s, KeyDefaultPaymentMethod); ok && def != nil {
		return def.ID == paymentMethodID, nil
	}
	methods, err := s.listPaymentMethods(ctx, customerID)
	if isUnavailable(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	def := findDefault(methods)
	return def != nil && def.ID == paymentMethodID, nil
}

func (s *Service) hasLiveSubscription(ctx context.Context, customerID string) (bool, error) {
	subs, err := s.activeSubscriptions(ctx, customerID)
	if isUnavailable(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.IsLive() {
			return true, nil
		}
	}
	return false, nil
}

func findDefault(methods []*domain.PaymentMethod) *domain.PaymentMethod {
	for _, m := range methods {
		if m != nil && m.IsDefault {
			return m
		}
	}
	return nil
}

// isUnavailable reports errors meaning the processor lacks the operation.
func isUnavailable(err error) bool {
	return errors.Is(err, domain.ErrNotImplemented) || errors.Is(err, domain.ErrUnsupportedOperation)
}
