package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// Registry holds one factory per provider.
type Registry struct {
	factories map[domain.Provider]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[domain.Provider]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		r.factories[normalize(f.Provider())] = f
	}
	return r
}

func (r *Registry) ProviderExists(provider domain.Provider) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(provider)]
	return ok
}

// Providers returns the registered providers in name order.
func (r *Registry) Providers() []domain.Provider {
	if r == nil {
		return nil
	}
	out := make([]domain.Provider, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentProcessor, error) {
	provider := normalize(cfg.Provider)
	if !r.ProviderExists(provider) {
		return nil, domain.NewInvalidConfigurationError("provider", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
	cfg.Provider = provider
	return r.factories[provider].NewAdapter(cfg)
}

func normalize(p domain.Provider) domain.Provider {
	return domain.Provider(strings.ToLower(strings.TrimSpace(string(p))))
}
