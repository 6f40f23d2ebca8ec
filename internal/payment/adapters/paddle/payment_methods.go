package paddle

import (
	"context"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// Payment details are owned by Paddle's hosted update_url flow; the API only
// reports what a subscription is billed with.

func (a *Adapter) AddPaymentMethod(ctx context.Context, customerID, token string, setDefault bool) (*domain.PaymentMethod, error) {
	return nil, domain.Unsupported(domain.ProviderPaddle, "add_payment_method")
}

// ListPaymentMethods reports the card or PayPal account behind each of the
// customer's subscriptions, most recent subscription first as the default.
func (a *Adapter) ListPaymentMethods(ctx context.Context, customerID string) ([]*domain.PaymentMethod, error) {
	users, err := a.customerUsers(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.PaymentMethod, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for i := len(users) - 1; i >= 0; i-- {
		pm := mapPaymentMethod(users[i])
		if pm == nil {
			continue
		}
		key := string(pm.Type) + pm.Brand + pm.Last4
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pm.IsDefault = len(out) == 0
		out = append(out, pm)
	}
	return out, nil
}

func (a *Adapter) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*domain.PaymentMethod, error) {
	return nil, domain.Unsupported(domain.ProviderPaddle, "set_default_payment_method")
}

func (a *Adapter) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	return domain.Unsupported(domain.ProviderPaddle, "remove_payment_method")
}
