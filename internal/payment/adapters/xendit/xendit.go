package xendit

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.xendit.co"

	metadataDefaultPaymentMethod = "default_payment_method_id"
	metadataPriceID              = "price_id"
	metadataQuantity             = "quantity"
)

// Factory creates Xendit adapters
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderXendit
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentProcessor, error) {
	var settings Config
	switch s := cfg.Settings.(type) {
	case Config:
		settings = s
	case *Config:
		if s == nil {
			return nil, domain.NewInvalidConfigurationError("xendit", "xendit configuration is required")
		}
		settings = *s
	default:
		return nil, domain.NewInvalidConfigurationError("xendit", "xendit configuration is required")
	}
	settings.SecretKey = strings.TrimSpace(settings.SecretKey)
	if settings.SecretKey == "" {
		return nil, domain.NewInvalidConfigurationError("xendit.secret_key", "secret key is required")
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	var clk clock.Clock = clock.SystemClock{}
	if cfg.Clock != nil {
		clk = cfg.Clock
	}
	ids := cfg.IDs
	if ids == nil {
		node, err := snowflake.NewNode(0)
		if err != nil {
			return nil, domain.NewInvalidConfigurationError("ids", err.Error())
		}
		ids = node
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	secret := settings.SecretKey
	return &Adapter{
		cfg:   settings,
		log:   log.Named("payment.xendit"),
		clock: clk,
		ids:   ids,
		client: transport.New(transport.Options{
			Provider:   domain.ProviderXendit,
			BaseURL:    baseURL,
			Timeout:    cfg.HTTPTimeout,
			HTTPClient: cfg.HTTPClient,
			Log:        log,
			Authorize: func(req *http.Request) {
				// Basic Auth with API Key as username
				req.SetBasicAuth(secret, "")
			},
		}),
	}, nil
}

// Adapter implements domain.PaymentProcessor for Xendit
type Adapter struct {
	cfg    Config
	log    *zap.Logger
	clock  clock.Clock
	ids    *snowflake.Node
	client *transport.Client
}

var _ domain.PaymentProcessor = (*Adapter)(nil)
var _ domain.CheckoutCreator = (*Adapter)(nil)

func (a *Adapter) Provider() domain.Provider { return domain.ProviderXendit }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{SupportsPlanSwapping: true}
}

func (a *Adapter) SignatureHeader() string { return "X-Callback-Token" }

func (a *Adapter) CreateCustomer(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error) {
	email := strings.TrimSpace(input.Email)
	if !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "email must contain @")
	}

	body := xenditCustomerRequest{
		ReferenceID: uuid.NewString(),
		Type:        "INDIVIDUAL",
		Email:       email,
		Mobile:      input.Phone,
		Metadata:    input.Metadata,
	}
	if input.Name != "" {
		body.Individual = &xenditIndividual{GivenNames: input.Name}
	}

	var out xenditCustomer
	if err := a.client.Do(ctx, transport.Request{
		Method:         http.MethodPost,
		Path:           "/customers",
		JSON:           body,
		IdempotencyKey: body.ReferenceID,
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

func (a *Adapter) fetchCustomer(ctx context.Context, customerID string) (*xenditCustomer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	var out xenditCustomer
	err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/customers/" + url.PathEscape(customerID),
	}, &out)
	if err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderXendit, "customer "+customerID+" not found"))
	}
	return &out, nil
}

// UpdateCustomer merges metadata because Xendit replaces the whole object.
func (a *Adapter) UpdateCustomer(ctx context.Context, customerID string, input domain.UpdateCustomerInput) (*domain.Customer, error) {
	body := xenditCustomerRequest{}
	if input.Email != nil {
		if !strings.Contains(*input.Email, "@") {
			return nil, domain.NewValidationError("email", "email must contain @")
		}
		body.Email = strings.TrimSpace(*input.Email)
	}
	if input.Name != nil {
		body.Individual = &xenditIndividual{GivenNames: *input.Name}
	}
	if input.Phone != nil {
		body.Mobile = *input.Phone
	}
	if len(input.Metadata) > 0 {
		current, err := a.fetchCustomer(ctx, customerID)
		if err != nil {
			return nil, err
		}
		body.Metadata = mergeMetadata(current.Metadata, input.Metadata)
	}
	return a.patchCustomer(ctx, customerID, body)
}

func (a *Adapter) patchCustomer(ctx context.Context, customerID string, body xenditCustomerRequest) (*domain.Customer, error) {
	var out xenditCustomer
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   "/customers/" + url.PathEscape(customerID),
		JSON:   body,
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderXendit, "customer "+customerID+" not found"))
	}
	return mapCustomer(out), nil
}

// DeleteCustomer has no Xendit endpoint; customers can only be updated.
func (a *Adapter) DeleteCustomer(ctx context.Context, customerID string) error {
	return domain.NotImplemented(domain.ProviderXendit, "delete_customer")
}

func mergeMetadata(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
