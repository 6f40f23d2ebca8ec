package service

import (
	"context"
	"errors"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

type InitializeInput struct {
	Email    string
	Name     string
	Phone    string
	Metadata map[string]string
}

// Initialize binds the service to a processor customer. A cached customer
// with the same email is reused as long as the processor still knows it.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (*domain.Customer, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}

	if id, ok, err := s.storage.Get(ctx, KeyCustomerID); err == nil && ok && id != "" {
		cachedEmail, _, _ := s.storage.Get(ctx, KeyCustomerEmail)
		if strings.EqualFold(cachedEmail, email) {
			customer, err := call(ctx, s, "get_customer", func(ctx context.Context) (*domain.Customer, error) {
				return s.processor.GetCustomer(ctx, id)
			})
			switch {
			case err == nil:
				s.rememberCustomer(ctx, customer)
				return customer, nil
			case !errors.Is(err, domain.ErrCustomerNotFound):
				return nil, err
			}
			s.log.Info("cached customer vanished at processor, creating a new one",
				zap.String("provider", string(s.processor.Provider())),
				zap.String("customer_id", id),
			)
		}
		if err := s.storage.Clear(ctx); err != nil {
			return nil, err
		}
	}

	customer, err := call(ctx, s, "create_customer", func(ctx context.Context) (*domain.Customer, error) {
		return s.processor.CreateCustomer(ctx, domain.CreateCustomerInput{
			Email:    email,
			Name:     in.Name,
			Phone:    in.Phone,
			Metadata: in.Metadata,
		})
	})
	if err != nil {
		return nil, err
	}
	s.rememberCustomer(ctx, customer)
	s.log.Info("payment customer initialized",
		zap.String("provider", string(s.processor.Provider())),
		zap.String("customer_id", customer.ProcessorCustomerID),
	)
	return customer, nil
}

func (s *Service) rememberCustomer(ctx context.Context, customer *domain.Customer) {
	if err := s.storage.Set(ctx, KeyCustomerID, customer.ProcessorCustomerID); err != nil {
		s.log.Warn("cache write failed", zap.String("key", KeyCustomerID), zap.Error(err))
	}
	if err := s.storage.Set(ctx, KeyCustomerEmail, customer.Email); err != nil {
		s.log.Warn("cache write failed", zap.String("key", KeyCustomerEmail), zap.Error(err))
	}
	s.store(ctx, KeyCustomer, customer)
}

// Customer returns the bound customer, from cache when possible.
func (s *Service) Customer(ctx context.Context) (*domain.Customer, error) {
	id, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	if customer, ok := cached[*domain.Customer](ctx, s, KeyCustomer); ok && customer != nil {
		return customer, nil
	}
	customer, err := call(ctx, s, "get_customer", func(ctx context.Context) (*domain.Customer, error) {
		return s.processor.GetCustomer(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.store(ctx, KeyCustomer, customer)
	return customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, in domain.UpdateCustomerInput) (*domain.Customer, error) {
	id, err := s.customerID(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := call(ctx, s, "update_customer", func(ctx context.Context) (*domain.Customer, error) {
		return s.processor.UpdateCustomer(ctx, id, in)
	})
	if err != nil {
		return nil, err
	}
	s.rememberCustomer(ctx, customer)
	return customer, nil
}
