package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/railzwaylabs/paybridge/internal/observability/logger"
	"github.com/railzwaylabs/paybridge/internal/observability/tracing"
	"github.com/railzwaylabs/paybridge/internal/payment/domain"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseBody = 4 << 20
)

// ErrorDecoder extracts the provider's error message and code from a
// non-2xx response body.
type ErrorDecoder func(status int, body []byte) ProviderError

type Options struct {
	Provider   domain.Provider
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        *zap.Logger
	// Authorize sets credentials on every outgoing request.
	Authorize func(req *http.Request)
	Headers   map[string]string
	// ContentType is used for JSON bodies; defaults to application/json.
	ContentType string
	DecodeError ErrorDecoder
}

// Client is the per-adapter HTTP client. It is safe for concurrent use.
type Client struct {
	provider    domain.Provider
	baseURL     string
	http        *http.Client
	log         *zap.Logger
	authorize   func(req *http.Request)
	headers     map[string]string
	contentType string
	decodeError ErrorDecoder
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		if clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	}

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	decode := opts.DecodeError
	if decode == nil {
		decode = DecodeJSONError
	}

	return &Client{
		provider:    opts.Provider,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        tracing.WrapHTTPClient(httpClient),
		log:         log.Named("transport"),
		authorize:   opts.Authorize,
		headers:     opts.Headers,
		contentType: contentType,
		decodeError: decode,
	}
}

type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Form           url.Values
	JSON           any
	IdempotencyKey string
	Headers        map[string]string
}

// Do sends the request and decodes a 2xx body into out. Failures come back as
// *domain.Error, except context cancellation which is returned as is.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	c.log.Debug("processor request",
		zap.String("provider", string(c.provider)),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Any("headers", logger.MaskHeaders(req.Header)),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewNetworkError(c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewNetworkError(c.provider, err)
	}

	c.log.Debug("processor response",
		zap.String("provider", string(c.provider)),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := MapError(c.provider, resp.StatusCode, c.decodeError(resp.StatusCode, body))
		c.log.Warn("processor error",
			zap.String("provider", string(c.provider)),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(mapped.Kind)),
			zap.String("code", mapped.Code),
		)
		return mapped
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.Error{
			Kind:     domain.KindProcessor,
			Provider: c.provider,
			Code:     "invalid_response",
			Message:  "unable to decode processor response",
			Err:      err,
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.JSON != nil:
		raw, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, domain.NewValidationError("body", "request body cannot be encoded")
		}
		body = bytes.NewReader(raw)
		contentType = c.contentType
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindProcessor, Provider: c.provider, Message: "invalid request", Err: err}
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.IdempotencyKey)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if c.authorize != nil {
		c.authorize(req)
	}
	return req, nil
}

// DecodeJSONError understands the common error body shapes: a top-level
// message/code, a nested "error" object or string, and JSON:API "errors".
func DecodeJSONError(status int, body []byte) ProviderError {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return ProviderError{Message: strings.TrimSpace(string(body))}
	}

	perr := ProviderError{Structured: true}
	perr.Message = firstString(raw, "message", "error_message", "detail")
	perr.Code = firstString(raw, "error_code", "code")

	switch e := raw["error"].(type) {
	case string:
		if perr.Message == "" {
			perr.Message = e
		}
	case map[string]any:
		if msg := firstString(e, "message", "detail"); msg != "" {
			perr.Message = msg
		}
		if code := firstString(e, "decline_code", "code", "type"); code != "" {
			perr.Code = code
		}
	}

	if list, ok := raw["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			if perr.Message == "" {
				perr.Message = firstString(first, "detail", "title", "message")
			}
			if perr.Code == "" {
				perr.Code = firstString(first, "code")
			}
		}
	}

	if perr.Message == "" && perr.Code == "" {
		perr.Structured = false
	}
	return perr
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// IsContextError reports whether err stems from cancellation or deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
