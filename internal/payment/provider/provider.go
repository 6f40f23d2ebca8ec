package provider

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/observability/logger"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/braintree"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/lemonsqueezy"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/paddle"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/xendit"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

// Options are the process-wide collaborators shared by every adapter.
type Options struct {
	Log        *zap.Logger
	HTTPClient *http.Client
	Clock      clock.Clock
	IDs        *snowflake.Node
}

// NewRegistry returns a registry holding every supported provider.
func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewFactory(),
		xendit.NewFactory(),
		paddle.NewFactory(),
		lemonsqueezy.NewFactory(),
		braintree.NewFactory(),
	)
}

// New validates cfg and builds the selected processor.
func New(cfg Config, opts Options) (domain.PaymentProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := domain.Provider(strings.ToLower(strings.TrimSpace(string(cfg.Provider))))

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	processor, err := NewRegistry().NewAdapter(domain.AdapterConfig{
		Provider:    p,
		Settings:    cfg.sections()[p],
		BaseURL:     cfg.BaseURL,
		HTTPTimeout: cfg.HTTPTimeout,
		HTTPClient:  opts.HTTPClient,
		Log:         log,
		Clock:       opts.Clock,
		IDs:         opts.IDs,
	})
	if err != nil {
		return nil, err
	}
	log.Info("payment processor configured",
		zap.String("provider", string(p)),
		zap.Bool("custom_base_url", cfg.BaseURL != ""),
		zap.String("webhook_secret", logger.MaskAPIKey(cfg.WebhookSecret())),
	)
	return processor, nil
}
