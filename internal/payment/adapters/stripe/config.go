package stripe

import "time"

type Config struct {
	SecretKey      string `mapstructure:"secret_key" json:"secret_key" validate:"required,startswith=sk_"`
	PublishableKey string `mapstructure:"publishable_key" json:"publishable_key" validate:"required,startswith=pk_"`
	WebhookSecret  string `mapstructure:"webhook_secret" json:"webhook_secret"`
	// WebhookTolerance rejects signed events older than this when non-zero.
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance" json:"webhook_tolerance"`
}

// IsLiveMode reports whether the secret key targets live data.
func (c Config) IsLiveMode() bool {
	return len(c.SecretKey) >= 8 && c.SecretKey[:8] == "sk_live_"
}
