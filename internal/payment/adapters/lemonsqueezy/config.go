package lemonsqueezy

type Config struct {
	APIKey        string `mapstructure:"api_key" json:"api_key" validate:"required"`
	StoreID       string `mapstructure:"store_id" json:"store_id" validate:"required,numeric"`
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
	// TestMode marks checkouts as test checkouts.
	TestMode bool `mapstructure:"test_mode" json:"test_mode"`
}
