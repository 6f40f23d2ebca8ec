package provider

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/braintree"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/lemonsqueezy"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/paddle"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/stripe"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/xendit"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// Config selects one processor and carries its credentials. Exactly one
// provider section may be set and it must match Provider.
type Config struct {
	Provider    domain.Provider `mapstructure:"provider" json:"provider" validate:"required,oneof=stripe xendit paddle lemonsqueezy braintree"`
	BaseURL     string          `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	HTTPTimeout time.Duration   `mapstructure:"http_timeout" json:"http_timeout" validate:"gte=0"`

	Stripe       *stripe.Config       `mapstructure:"stripe" json:"stripe,omitempty" validate:"-"`
	Xendit       *xendit.Config       `mapstructure:"xendit" json:"xendit,omitempty" validate:"-"`
	Paddle       *paddle.Config       `mapstructure:"paddle" json:"paddle,omitempty" validate:"-"`
	LemonSqueezy *lemonsqueezy.Config `mapstructure:"lemonsqueezy" json:"lemonsqueezy,omitempty" validate:"-"`
	Braintree    *braintree.Config    `mapstructure:"braintree" json:"braintree,omitempty" validate:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

// Validate checks the configuration without any network call. Failures are
// InvalidConfigurationErrors naming the offending field, e.g. stripe.secret_key.
func (c Config) Validate() error {
	c.Provider = domain.Provider(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if err := validate.Struct(c); err != nil {
		return configError("", err)
	}

	sections := c.sections()
	set := 0
	for _, s := range sections {
		if s != nil {
			set++
		}
	}
	section := sections[c.Provider]
	if section == nil {
		return domain.NewInvalidConfigurationError(string(c.Provider), fmt.Sprintf("%s configuration is required", c.Provider))
	}
	if set > 1 {
		return domain.NewInvalidConfigurationError("provider", "configuration must carry exactly one provider section")
	}
	if err := validate.Struct(section); err != nil {
		return configError(string(c.Provider), err)
	}

	if c.Provider == domain.ProviderStripe {
		return checkStripeMode(*c.Stripe)
	}
	return nil
}

// sections returns the configured section per provider; unset sections are
// untyped nils.
func (c Config) sections() map[domain.Provider]any {
	out := map[domain.Provider]any{}
	add := func(p domain.Provider, set bool, section any) {
		if set {
			out[p] = section
		} else {
			out[p] = nil
		}
	}
	add(domain.ProviderStripe, c.Stripe != nil, c.Stripe)
	add(domain.ProviderXendit, c.Xendit != nil, c.Xendit)
	add(domain.ProviderPaddle, c.Paddle != nil, c.Paddle)
	add(domain.ProviderLemonSqueezy, c.LemonSqueezy != nil, c.LemonSqueezy)
	add(domain.ProviderBraintree, c.Braintree != nil, c.Braintree)
	return out
}

// checkStripeMode rejects a test publishable key paired with a live secret
// key and the reverse.
func checkStripeMode(cfg stripe.Config) error {
	secretLive := strings.HasPrefix(cfg.SecretKey, "sk_live_")
	publishableLive := strings.HasPrefix(cfg.PublishableKey, "pk_live_")
	if secretLive != publishableLive {
		return domain.NewInvalidConfigurationError("stripe.publishable_key", "publishable and secret keys must both be test or both be live keys")
	}
	return nil
}

func configError(prefix string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewInvalidConfigurationError(prefix, err.Error())
	}
	fe := verrs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return domain.NewInvalidConfigurationError(field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "startswith":
		return fmt.Sprintf("%s must start with %q", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "numeric":
		return fe.Field() + " must be numeric"
	case "url":
		return fe.Field() + " must be a url"
	default:
		return fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag())
	}
}

// WebhookSecret returns the secret inbound notifications are verified with:
// the signing secret for stripe, lemonsqueezy and braintree, the callback
// token for xendit and the alert key for paddle.
func (c Config) WebhookSecret() string {
	switch domain.Provider(strings.ToLower(strings.TrimSpace(string(c.Provider)))) {
	case domain.ProviderStripe:
		if c.Stripe != nil {
			return c.Stripe.WebhookSecret
		}
	case domain.ProviderXendit:
		if c.Xendit != nil {
			return c.Xendit.CallbackToken
		}
	case domain.ProviderPaddle:
		if c.Paddle != nil {
			return c.Paddle.PublicKey
		}
	case domain.ProviderLemonSqueezy:
		if c.LemonSqueezy != nil {
			return c.LemonSqueezy.WebhookSecret
		}
	case domain.ProviderBraintree:
		if c.Braintree != nil {
			return c.Braintree.WebhookSecret
		}
	}
	return ""
}
