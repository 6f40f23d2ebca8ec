package payment

import (
	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/config"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"github.com/railzwaylabs/paybridge/internal/payment/provider"
	paymentservice "github.com/railzwaylabs/paybridge/internal/payment/service"
	"github.com/railzwaylabs/paybridge/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(
		newProcessor,
		func(cfg config.Config) webhook.Secret { return webhook.Secret(cfg.Processor.WebhookSecret()) },
		func(cfg config.Config) paymentservice.RetryConfig {
			return paymentservice.RetryConfig{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay}
		},
		paymentservice.New,
		webhook.NewService,
	),
)

type processorParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock     `optional:"true"`
	IDs    *snowflake.Node `optional:"true"`
}

func newProcessor(p processorParams) (domain.PaymentProcessor, error) {
	return provider.New(p.Config.Processor, provider.Options{
		Log:   p.Log,
		Clock: p.Clock,
		IDs:   p.IDs,
	})
}
