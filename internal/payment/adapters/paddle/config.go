package paddle

import "github.com/railzwaylabs/paybridge/internal/payment/domain"

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

type Config struct {
	VendorID       string `mapstructure:"vendor_id" json:"vendor_id" validate:"required,numeric"`
	VendorAuthCode string `mapstructure:"vendor_auth_code" json:"vendor_auth_code" validate:"required"`
	// PublicKey keys the p_signature HMAC on webhook alerts.
	PublicKey   string      `mapstructure:"public_key" json:"public_key"`
	Environment Environment `mapstructure:"environment" json:"environment" validate:"required,oneof=sandbox production"`
	// Currency formats partial refund amounts; orders cannot be read back to
	// learn their own currency. Defaults to usd.
	Currency string `mapstructure:"currency" json:"currency" validate:"omitempty,len=3"`
}

func (c Config) refundCurrency() string {
	if c.Currency == "" {
		return "usd"
	}
	return domain.NormalizeCurrency(c.Currency)
}

func (c Config) baseURL() string {
	if c.Environment == EnvironmentProduction {
		return "https://vendors.paddle.com/api"
	}
	return "https://sandbox-vendors.paddle.com/api"
}
