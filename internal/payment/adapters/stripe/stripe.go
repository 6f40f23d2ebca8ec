package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.stripe.com"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderStripe
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentProcessor, error) {
	var settings Config
	switch s := cfg.Settings.(type) {
	case Config:
		settings = s
	case *Config:
		if s == nil {
			return nil, domain.NewInvalidConfigurationError("stripe", "stripe configuration is required")
		}
		settings = *s
	default:
		return nil, domain.NewInvalidConfigurationError("stripe", "stripe configuration is required")
	}
	settings.SecretKey = strings.TrimSpace(settings.SecretKey)
	if settings.SecretKey == "" {
		return nil, domain.NewInvalidConfigurationError("stripe.secret_key", "secret key is required")
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	var clk clock.Clock = clock.SystemClock{}
	if cfg.Clock != nil {
		clk = cfg.Clock
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	secret := settings.SecretKey
	return &Adapter{
		cfg:   settings,
		log:   log.Named("payment.stripe"),
		clock: clk,
		client: transport.New(transport.Options{
			Provider:   domain.ProviderStripe,
			BaseURL:    baseURL,
			Timeout:    cfg.HTTPTimeout,
			HTTPClient: cfg.HTTPClient,
			Log:        log,
			Authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+secret)
			},
		}),
	}, nil
}

type Adapter struct {
	cfg    Config
	log    *zap.Logger
	clock  clock.Clock
	client *transport.Client
}

var _ domain.PaymentProcessor = (*Adapter)(nil)
var _ domain.CheckoutCreator = (*Adapter)(nil)

func (a *Adapter) Provider() domain.Provider { return domain.ProviderStripe }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		SupportsTrialPeriods: true,
		SupportsPlanSwapping: true,
		SupportsProration:    true,
	}
}

func (a *Adapter) SignatureHeader() string { return "Stripe-Signature" }

func (a *Adapter) CreateCustomer(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error) {
	email := strings.TrimSpace(input.Email)
	if !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "email must contain @")
	}

	form := url.Values{}
	form.Set("email", email)
	if input.Name != "" {
		form.Set("name", input.Name)
	}
	if input.Phone != "" {
		form.Set("phone", input.Phone)
	}
	setMetadata(form, "metadata", input.Metadata)

	var out stripeCustomer
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/v1/customers",
		Form:           form,
		IdempotencyKey: uuid.NewString(),
	}, &out); err != nil {
		return nil, err
	}
	return mapCustomer(out), nil
}

func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	out, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return mapCustomer(*out), nil
}

func (a *Adapter) fetchCustomer(ctx context.Context, customerID string) (*stripeCustomer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	var out stripeCustomer
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/customers/" + url.PathEscape(customerID),
	}, &out); err != nil {
		return nil, err
	}
	if out.Deleted {
		return nil, domain.NewCustomerNotFoundError(domain.ProviderStripe, "customer "+customerID+" has been deleted")
	}
	return &out, nil
}

func (a *Adapter) UpdateCustomer(ctx context.Context, customerID string, input domain.UpdateCustomerInput) (*domain.Customer, error) {
	form := url.Values{}
	if input.Email != nil {
		if !strings.Contains(*input.Email, "@") {
			return nil, domain.NewValidationError("email", "email must contain @")
		}
		form.Set("email", strings.TrimSpace(*input.Email))
	}
	if input.Name != nil {
		form.Set("name", *input.Name)
	}
	if input.Phone != nil {
		form.Set("phone", *input.Phone)
	}
	setMetadata(form, "metadata", input.Metadata)

	var out stripeCustomer
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/customers/" + url.PathEscape(customerID),
		Form:   form,
	}, &out); err != nil {
		return nil, err
	}
	return mapCustomer(out), nil
}

func (a *Adapter) DeleteCustomer(ctx context.Context, customerID string) error {
	return a.client.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/v1/customers/" + url.PathEscape(customerID),
	}, nil)
}

func setMetadata(form url.Values, prefix string, metadata map[string]string) {
	for k, v := range metadata {
		form.Set(prefix+"["+k+"]", v)
	}
}
