package xendit

type Config struct {
	SecretKey string `mapstructure:"secret_key" json:"secret_key" validate:"required,startswith=xnd_"`
	// CallbackToken is the static X-Callback-Token configured on the dashboard.
	CallbackToken string `mapstructure:"callback_token" json:"callback_token"`
	// Currency is used when an input carries none.
	Currency string `mapstructure:"currency" json:"currency" validate:"omitempty,len=3"`
}

// IsLiveMode reports whether the secret key targets production.
func (c Config) IsLiveMode() bool {
	return len(c.SecretKey) >= 16 && c.SecretKey[:16] == "xnd_production_"
}

func (c Config) currency(in string) string {
	if in != "" {
		return in
	}
	if c.Currency != "" {
		return c.Currency
	}
	return "IDR"
}
