package paddle

import (
	"context"
	"encoding/json"
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

const pageSize = 200

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderPaddle
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentProcessor, error) {
	var settings Config
	switch s := cfg.Settings.(type) {
	case Config:
		settings = s
	case *Config:
		if s == nil {
			return nil, domain.NewInvalidConfigurationError("paddle", "paddle configuration is required")
		}
		settings = *s
	default:
		return nil, domain.NewInvalidConfigurationError("paddle", "paddle configuration is required")
	}
	if strings.TrimSpace(settings.VendorID) == "" {
		return nil, domain.NewInvalidConfigurationError("paddle.vendor_id", "vendor id is required")
	}
	if strings.TrimSpace(settings.VendorAuthCode) == "" {
		return nil, domain.NewInvalidConfigurationError("paddle.vendor_auth_code", "vendor auth code is required")
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

	return &Adapter{
		cfg:   settings,
		log:   log.Named("payment.paddle"),
		clock: clk,
		ids:   ids,
		client: transport.New(transport.Options{
			Provider:   domain.ProviderPaddle,
			BaseURL:    baseURL,
			Timeout:    cfg.HTTPTimeout,
			HTTPClient: cfg.HTTPClient,
			Log:        log,
		}),
	}, nil
}

// Adapter talks to the Paddle Classic vendor API. Every call is a form POST
// answered with a {success, response, error} envelope, usually with HTTP 200
// even on failure.
type Adapter struct {
	cfg    Config
	log    *zap.Logger
	clock  clock.Clock
	ids    *snowflake.Node
	client *transport.Client
}

var _ domain.PaymentProcessor = (*Adapter)(nil)
var _ domain.CheckoutCreator = (*Adapter)(nil)

func (a *Adapter) Provider() domain.Provider { return domain.ProviderPaddle }

func (a *Adapter) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		SupportsTrialPeriods: true,
		SupportsPlanSwapping: true,
		SupportsProration:    true,
	}
}

// SignatureHeader is empty: alerts carry p_signature in the body.
func (a *Adapter) SignatureHeader() string { return "" }

type envelope struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call posts form to path with vendor credentials and decodes the envelope's
// response into out.
func (a *Adapter) call(ctx context.Context, path string, form url.Values, out any) error {
	if form == nil {
		form = url.Values{}
	}
	form.Set("vendor_id", a.cfg.VendorID)
	form.Set("vendor_auth_code", a.cfg.VendorAuthCode)

	var env envelope
	if err := a.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		Form:   form,
	}, &env); err != nil {
		return err
	}
	if !env.Success {
		return envelopeError(env)
	}
	if out == nil || len(env.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return &domain.Error{
			Kind:     domain.KindProcessor,
			Provider: domain.ProviderPaddle,
			Code:     "invalid_response",
			Message:  "unable to decode paddle response",
			Err:      err,
		}
	}
	return nil
}

var authErrorCodes = map[int]struct{}{
	102: {},
	107: {},
}

func envelopeError(env envelope) error {
	if env.Error == nil {
		return domain.NewProcessorError(domain.ProviderPaddle, "", "paddle reported failure without an error")
	}
	code := strconv.Itoa(env.Error.Code)
	message := env.Error.Message
	lower := strings.ToLower(message)

	status := http.StatusOK
	switch {
	case hasCode(authErrorCodes, env.Error.Code):
		status = http.StatusUnauthorized
	case strings.Contains(lower, "unable to find"), strings.Contains(lower, "not found"), strings.Contains(lower, "does not exist"):
		status = http.StatusNotFound
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "must be"), strings.Contains(lower, "required"),
		strings.Contains(lower, "exceed"), strings.Contains(lower, "more than"):
		status = http.StatusBadRequest
	}
	mapped := transport.MapError(domain.ProviderPaddle, status, transport.ProviderError{
		Message:    message,
		Code:       code,
		Structured: true,
	})
	if status == http.StatusOK {
		mapped.StatusCode = 0
	}
	return mapped
}

func hasCode(set map[int]struct{}, code int) bool {
	_, ok := set[code]
	return ok
}

// CreateCustomer validates the email and returns an email-keyed customer.
// Paddle Classic creates users only when a checkout completes, so the
// email is the stable identifier until then.
func (a *Adapter) CreateCustomer(ctx context.Context, input domain.CreateCustomerInput) (*domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "email must contain @")
	}
	now := a.clock.Now(ctx)
	return &domain.Customer{
		ID:                  email,
		Email:               email,
		Name:                input.Name,
		Phone:               input.Phone,
		Processor:           domain.ProviderPaddle,
		ProcessorCustomerID: email,
		Metadata:            input.Metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// GetCustomer resolves a user id or email through the subscription users.
func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.NewValidationError("customer_id", "customer id is required")
	}
	users, err := a.customerUsers(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(users) > 0 {
		u := users[0]
		signup := parseDateTime(u.SignupDate)
		return &domain.Customer{
			ID:                  customerID,
			Email:               u.UserEmail,
			Processor:           domain.ProviderPaddle,
			ProcessorCustomerID: strconv.FormatInt(u.UserID, 10),
			CreatedAt:           signup,
			UpdatedAt:           signup,
		}, nil
	}
	if strings.Contains(customerID, "@") {
		return a.CreateCustomer(ctx, domain.CreateCustomerInput{Email: customerID})
	}
	return nil, domain.NewCustomerNotFoundError(domain.ProviderPaddle, "no paddle user "+customerID)
}

func (a *Adapter) UpdateCustomer(ctx context.Context, customerID string, input domain.UpdateCustomerInput) (*domain.Customer, error) {
	return nil, domain.Unsupported(domain.ProviderPaddle, "update_customer")
}

func (a *Adapter) DeleteCustomer(ctx context.Context, customerID string) error {
	return domain.Unsupported(domain.ProviderPaddle, "delete_customer")
}

// customerUsers returns the subscription user records belonging to a user id
// or email.
func (a *Adapter) customerUsers(ctx context.Context, customerID string) ([]paddleUser, error) {
	all, err := a.listUsers(ctx, url.Values{})
	if err != nil {
		return nil, err
	}
	var out []paddleUser
	for _, u := range all {
		if u.matches(customerID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (a *Adapter) listUsers(ctx context.Context, filter url.Values) ([]paddleUser, error) {
	var all []paddleUser
	for page := 1; ; page++ {
		form := url.Values{}
		for k, v := range filter {
			form[k] = v
		}
		form.Set("page", strconv.Itoa(page))
		form.Set("results_per_page", strconv.Itoa(pageSize))

		var users []paddleUser
		if err := a.call(ctx, "/2.0/subscription/users", form, &users); err != nil {
			return nil, err
		}
		all = append(all, users...)
		if len(users) < pageSize {
			return all, nil
		}
	}
}
