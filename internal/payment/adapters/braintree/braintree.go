package braintree

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/payment/adapters/transport"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

const apiVersion = "2019-01-01"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderBraintree
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentProcessor, error) {
	var settings Config
	switch s := cfg.Settings.(type) {
	case Config:
		settings = s
	case *Config:
		if s == nil {
			return nil, domain.NewInvalidConfigurationError("braintree", "braintree configuration is required")
		}
		settings = *s
	default:
		return nil, domain.NewInvalidConfigurationError("braintree", "braintree configuration is required")
	}
	if strings.TrimSpace(settings.MerchantID) == "" {
		return nil, domain.NewInvalidConfigurationError("braintree.merchant_id", "merchant id is required")
	}
	if settings.PublicKey == "" || settings.PrivateKey == "" {
		return nil, domain.NewInvalidConfigurationError("braintree.private_key", "public and private keys are required")
	}
	if settings.Environment == "" {
		settings.Environment = EnvironmentSandbox
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
		baseURL = settings.baseURL()
	}

	public, private := settings.PublicKey, settings.PrivateKey
	return &Adapter{
		cfg:   settings,
		log:   log.Named("payment.braintree"),
		clock: clk,
		ids:   ids,
		client: transport.New(transport.Options{
			Provider:   domain.ProviderBraintree,
			BaseURL:    baseURL,
			Timeout:    cfg.HTTPTimeout,
			HTTPClient: cfg.HTTPClient,
			Log:        log,
			Authorize: func(req *http.Request) {
				req.SetBasicAuth(public, private)
			},
			Headers: map[string]string{"Braintree-Version": apiVersion},
		}),
	}, nil
}

// Adapter speaks the Braintree GraphQL API. Recurring billing lives only in
// the legacy XML gateway, so subscription calls are not implemented.
type Adapter struct {
	cfg    Config
	log    *zap.Logger
	clock  clock.Clock
	ids    *snowflake.Node
	client *transport.Client
}

var _ domain.PaymentProcessor = (*Adapter)(nil)

func (a *Adapter) Provider() domain.Provider { return domain.ProviderBraintree }

func (a *Adapter) Capabilities() domain.Capabilities { return domain.Capabilities{} }

func (a *Adapter) SignatureHeader() string { return "X-Braintree-Signature" }

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		ErrorClass string `json:"errorClass"`
		LegacyCode string `json:"legacyCode"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query runs one GraphQL operation and decodes its data into out. GraphQL
// answers 200 even on failure; the first error decides the mapping.
func (a *Adapter) query(ctx context.Context, query string, variables map[string]any, out any) error {
	var resp graphQLResponse
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/graphql",
		JSON:   graphQLRequest{Query: query, Variables: variables},
	}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return graphQLFailure(resp.Errors[0])
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &domain.Error{
			Kind:     domain.KindProcessor,
			Provider: domain.ProviderBraintree,
			Code:     "invalid_response",
			Message:  "unable to decode braintree response",
			Err:      err,
		}
	}
	return nil
}

var errorClassStatus = map[string]int{
	"AUTHENTICATION":       http.StatusUnauthorized,
	"AUTHORIZATION":        http.StatusForbidden,
	"NOT_FOUND":            http.StatusNotFound,
	"VALIDATION":           http.StatusUnprocessableEntity,
	"UNSUPPORTED_CLIENT":   http.StatusBadRequest,
	"RESOURCE_LIMIT":       http.StatusTooManyRequests,
	"SERVICE_AVAILABILITY": http.StatusServiceUnavailable,
	"INTERNAL":             http.StatusInternalServerError,
}

func graphQLFailure(e graphQLError) error {
	status, ok := errorClassStatus[e.Extensions.ErrorClass]
	if !ok {
		status = http.StatusOK
	}
	code := e.Extensions.LegacyCode
	if isProcessorDecline(code) {
		code = domain.CodeCardDeclined
	}
	mapped := transport.MapError(domain.ProviderBraintree, status, transport.ProviderError{
		Message: e.Message,
		Code:    code,
		// Availability failures carry no actionable body.
		Structured: e.Extensions.ErrorClass != "SERVICE_AVAILABILITY",
	})
	if status == http.StatusOK {
		mapped.StatusCode = 0
	}
	return mapped
}

// isProcessorDecline reports whether a legacy code is a processor response
// in the 2000-2999 decline range.
func isProcessorDecline(code string) bool {
	return len(code) == 4 && code[0] == '2' && strings.Trim(code, "0123456789") == ""
}

const customerFields = `id email firstName lastName phoneNumber createdAt customFields { name value }`

func (a *Adapter) CreateCustomer(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error) {
	email := strings.TrimSpace(input.Email)
	if !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "email must contain @")
	}
	customer := customerInput(&email, &input.Name, &input.Phone, input.Metadata)

	var out struct {
		CreateCustomer struct {
			Customer btCustomer `json:"customer"`
		} `json:"createCustomer"`
	}
	if err := a.query(ctx, `mutation CreateCustomer($input: CreateCustomerInput!) {
  createCustomer(input: $input) { customer { `+customerFields+` } }
}`, map[string]any{"input": map[string]any{"customer": customer}}, &out); err != nil {
		return nil, err
	}
	a.log.Info("braintree customer created", zap.String("customer_id", out.CreateCustomer.Customer.ID))
	return mapCustomer(out.CreateCustomer.Customer), nil
}

func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	c, err := a.fetchCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return mapCustomer(*c), nil
}

func (a *Adapter) fetchCustomer(ctx context.Context, customerID string) (*btCustomer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	var out struct {
		Node *btCustomer `json:"node"`
	}
	if err := a.query(ctx, `query Customer($id: ID!) {
  node(id: $id) { ... on Customer { `+customerFields+`
    defaultPaymentMethod { id }
    paymentMethods { edges { node { `+paymentMethodFields+` } } } } }
}`, map[string]any{"id": customerID}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderBraintree, "customer "+customerID+" not found"))
	}
	if out.Node == nil || out.Node.ID == "" {
		return nil, domain.NewCustomerNotFoundError(domain.ProviderBraintree, "customer "+customerID+" not found")
	}
	return out.Node, nil
}

// UpdateCustomer replaces custom fields wholesale; metadata keys must exist as
// custom fields in the control panel.
func (a *Adapter) UpdateCustomer(ctx context.Context, customerID string, input domain.UpdateCustomerInput) (*domain.Customer, error) {
	if input.Email != nil && !strings.Contains(*input.Email, "@") {
		return nil, domain.NewValidationError("email", "email must contain @")
	}
	customer := customerInput(input.Email, input.Name, input.Phone, input.Metadata)
	if len(customer) == 0 {
		return a.GetCustomer(ctx, customerID)
	}

	var out struct {
		UpdateCustomer struct {
			Customer btCustomer `json:"customer"`
		} `json:"updateCustomer"`
	}
	if err := a.query(ctx, `mutation UpdateCustomer($input: UpdateCustomerInput!) {
  updateCustomer(input: $input) { customer { `+customerFields+` } }
}`, map[string]any{"input": map[string]any{"customerId": customerID, "customer": customer}}, &out); err != nil {
		return nil, transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderBraintree, "customer "+customerID+" not found"))
	}
	return mapCustomer(out.UpdateCustomer.Customer), nil
}

func (a *Adapter) DeleteCustomer(ctx context.Context, customerID string) error {
	if strings.TrimSpace(customerID) == "" {
		return domain.NewValidationError("customer_id", "customer id is required")
	}
	err := a.query(ctx, `mutation DeleteCustomer($input: DeleteCustomerInput!) {
  deleteCustomer(input: $input) { clientMutationId }
}`, map[string]any{"input": map[string]any{"customerId": customerID}}, nil)
	if err != nil {
		return transport.NotFoundAs(err, domain.NewCustomerNotFoundError(domain.ProviderBraintree, "customer "+customerID+" not found"))
	}
	return nil
}

func customerInput(email, name, phone *string, metadata map[string]string) map[string]any {
	in := map[string]any{}
	if email != nil && *email != "" {
		in["email"] = strings.TrimSpace(*email)
	}
	if name != nil && *name != "" {
		first, last := splitName(*name)
		in["firstName"] = first
		if last != "" {
			in["lastName"] = last
		}
	}
	if phone != nil && *phone != "" {
		in["phoneNumber"] = *phone
	}
	if len(metadata) > 0 {
		fields := make([]map[string]string, 0, len(metadata))
		for k, v := range metadata {
			fields = append(fields, map[string]string{"name": k, "value": v})
		}
		in["customFields"] = fields
	}
	return in
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}
