package adapters

import (
	"testing"

	"github.com/railzwaylabs/paybridge/internal/payment/adapters/braintree"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/lemonsqueezy"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/paddle"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/xendit"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() *Registry {
	return NewRegistry(
		stripe.NewFactory(),
		xendit.NewFactory(),
		paddle.NewFactory(),
		lemonsqueezy.NewFactory(),
		braintree.NewFactory(),
		nil,
	)
}

func TestRegistryListsProviders(t *testing.T) {
	r := newRegistry()
	assert.Equal(t, []domain.Provider{
		domain.ProviderBraintree,
		domain.ProviderLemonSqueezy,
		domain.ProviderPaddle,
		domain.ProviderStripe,
		domain.ProviderXendit,
	}, r.Providers())
	assert.True(t, r.ProviderExists(" Stripe "))
	assert.False(t, r.ProviderExists("adyen"))

	var empty *Registry
	assert.False(t, empty.ProviderExists(domain.ProviderStripe))
	assert.Nil(t, empty.Providers())
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	_, err := newRegistry().NewAdapter(domain.AdapterConfig{Provider: "adyen"})
	var perr *domain.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.KindInvalidConfiguration, perr.Kind)
	assert.Equal(t, "provider", perr.Field)
}

func TestRegistryBuildsAdapter(t *testing.T) {
	processor, err := newRegistry().NewAdapter(domain.AdapterConfig{
		Provider: "XENDIT",
		Settings: xendit.Config{SecretKey: "xnd_development_abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderXendit, processor.Provider())
	assert.Equal(t, "X-Callback-Token", processor.SignatureHeader())
}
