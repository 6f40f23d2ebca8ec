package lemonsqueezy

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.lemonsqueezy.com"
	pageSize       = 100
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderLemonSqueezy
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentProcessor, error) {
	var settings Config
	switch s := cfg.Settings.(type) {
	case Config:
		settings = s
	case *Config:
		if s == nil {
			return nil, domain.NewInvalidConfigurationError("lemonsqueezy", "lemonsqueezy configuration is required")
		}
		settings = *s
	default:
		return nil, domain.NewInvalidConfigurationError("lemonsqueezy", "lemonsqueezy configuration is required")
	}
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	if settings.APIKey == "" {
		return nil, domain.NewInvalidConfigurationError("lemonsqueezy.api_key", "api key is required")
	}
	if strings.TrimSpace(settings.StoreID) == "" {
		return nil, domain.NewInvalidConfigurationError("lemonsqueezy.store_id", "store id is required")
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

	apiKey := settings.APIKey
	return &Adapter{
		cfg:   settings,
		log:   log.Named("payment.lemonsqueezy"),
		clock: clk,
		ids:   ids,
		client: transport.New(transport.Options{
			Provider:    domain.ProviderLemonSqueezy,
			BaseURL:     baseURL,
			Timeout:     cfg.HTTPTimeout,
			HTTPClient:  cfg.HTTPClient,
			Log:         log,
			ContentType: contentType,
			Headers:     map[string]string{"Accept": contentType},
			Authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+apiKey)
			},
		}),
	}, nil
}

// Adapter implements domain.PaymentProcessor over the Lemon Squeezy JSON:API.
// Subscriptions and orders start at a hosted checkout; there are no payment
// method endpoints.
type Adapter struct {
	cfg    Config
	log    *zap.Logger
	clock  clock.Clock
	ids    *snowflake.Node
	client *transport.Client
}

var _ domain.PaymentProcessor = (*Adapter)(nil)
var _ domain.CheckoutCreator = (*Adapter)(nil)

func (a *Adapter) Provider() domain.Provider { return domain.ProviderLemonSqueezy }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		SupportsTrialPeriods: true,
		SupportsPlanSwapping: true,
		SupportsProration:    true,
	}
}

func (a *Adapter) SignatureHeader() string { return "X-Signature" }

func (a *Adapter) CreateCustomer(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error) {
	email := strings.TrimSpace(input.Email)
	if !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "email must contain @")
	}
	name := input.Name
	if name == "" {
		name = email
	}

	var out document[customerAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/customers",
		JSON: request{Data: requestData{
			Type:          "customers",
			Attributes:    map[string]any{"name": name, "email": email},
			Relationships: map[string]relation{"store": related("stores", a.cfg.StoreID)},
		}},
	}, &out); err != nil {
		return nil, err
	}
	customer := mapCustomer(out.Data)
	customer.Metadata = input.Metadata
	return customer, nil
}

func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	out, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return mapCustomer(*out), nil
}

func (a *Adapter) fetchCustomer(ctx context.Context, customerID string) (*resource[customerAttributes], error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	var out document[customerAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/customers/" + url.PathEscape(customerID),
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderLemonSqueezy, "customer "+customerID+" not found"))
	}
	if normalizeStatus(out.Data.Attributes.Status) == "archived" {
		return nil, domain.NewCustomerNotFoundError(domain.ProviderLemonSqueezy, "customer "+customerID+" is archived")
	}
	return &out.Data, nil
}

// UpdateCustomer changes name and email. Lemon Squeezy keeps no phone or
// metadata on customers.
func (a *Adapter) UpdateCustomer(ctx context.Context, customerID string, input domain.UpdateCustomerInput) (*domain.Customer, error) {
	attrs := map[string]any{}
	if input.Email != nil {
		if !strings.Contains(*input.Email, "@") {
			return nil, domain.NewValidationError("email", "email must contain @")
		}
		attrs["email"] = strings.TrimSpace(*input.Email)
	}
	if input.Name != nil {
		attrs["name"] = *input.Name
	}
	if len(attrs) == 0 {
		return a.GetCustomer(ctx, customerID)
	}
	return a.patchCustomer(ctx, customerID, attrs)
}

// DeleteCustomer archives the customer; Lemon Squeezy never deletes them.
func (a *Adapter) DeleteCustomer(ctx context.Context, customerID string) error {
	_, err := a.patchCustomer(ctx, customerID, map[string]any{"status": "archived"})
	return err
}

func (a *Adapter) patchCustomer(ctx context.Context, customerID string, attrs map[string]any) (*domain.Customer, error) {
	var out document[customerAttributes]
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   "/v1/customers/" + url.PathEscape(customerID),
		JSON:   request{Data: requestData{Type: "customers", ID: customerID, Attributes: attrs}},
	}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderLemonSqueezy, "customer "+customerID+" not found"))
	}
	return mapCustomer(out.Data), nil
}

func (a *Adapter) AddPaymentMethod(ctx context.Context, customerID, token string, setDefault bool) (*domain.PaymentMethod, error) {
	return nil, domain.Unsupported(domain.ProviderLemonSqueezy, "add_payment_method")
}

// ListPaymentMethods reports the card each subscription is billed to; the
// newest subscription's card is the default.
func (a *Adapter) ListPaymentMethods(ctx context.Context, customerID string) ([]*domain.PaymentMethod, error) {
	subs, err := a.customerSubscriptions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.PaymentMethod, 0, len(subs))
	seen := map[string]struct{}{}
	for i := len(subs) - 1; i >= 0; i-- {
		pm := mapPaymentMethod(subs[i])
		if pm == nil {
			continue
		}
		key := pm.Brand + pm.Last4
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pm.IsDefault = len(out) == 0
		out = append(out, pm)
	}
	return out, nil
}

func (a *Adapter) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*domain.PaymentMethod, error) {
	return nil, domain.Unsupported(domain.ProviderLemonSqueezy, "set_default_payment_method")
}

func (a *Adapter) RemovePaymentMethod(ctx context.Context, paymentMethodID string) error {
	return domain.Unsupported(domain.ProviderLemonSqueezy, "remove_payment_method")
}

// list walks every page of a collection endpoint.
func list[T any](ctx context.Context, c *transport.Client, path string, filter url.Values) ([]resource[T], error) {
	var all []resource[T]
	for page := 1; ; page++ {
		query := url.Values{}
		for k, v := range filter {
			query[k] = v
		}
		query.Set("page[number]", strconv.Itoa(page))
		query.Set("page[size]", strconv.Itoa(pageSize))

		var out listDocument[T]
		if err := c.Do(ctx, transport.Request{Method: http.MethodGet, Path: path, Query: query}, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Data...)
		if !out.hasMore() {
			return all, nil
		}
	}
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
