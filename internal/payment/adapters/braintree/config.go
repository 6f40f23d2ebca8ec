package braintree

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

type Config struct {
	MerchantID  string      `mapstructure:"merchant_id" json:"merchant_id" validate:"required"`
	PublicKey   string      `mapstructure:"public_key" json:"public_key" validate:"required"`
	PrivateKey  string      `mapstructure:"private_key" json:"private_key" validate:"required"`
	Environment Environment `mapstructure:"environment" json:"environment" validate:"required,oneof=sandbox production"`
	// MerchantAccountID picks the settlement currency; the merchant default is used when empty.
	MerchantAccountID string `mapstructure:"merchant_account_id" json:"merchant_account_id"`
	WebhookSecret     string `mapstructure:"webhook_secret" json:"webhook_secret"`
}

func (c Config) baseURL() string {
	if c.Environment == EnvironmentProduction {
		return "https://payments.braintree-api.com"
	}
	return "https://payments.sandbox.braintree-api.com"
}
