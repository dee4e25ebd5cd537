// Package api is the HTTP client for the techmart REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bugisthegod/techmart-storefront/pkg/config"
	pkgerrors "github.com/bugisthegod/techmart-storefront/pkg/errors"
	"github.com/bugisthegod/techmart-storefront/pkg/logger"
	"github.com/bugisthegod/techmart-storefront/pkg/metrics"
	"github.com/google/uuid"
)

const (
	HeaderRequestID        = "X-Request-ID"
	HeaderIdempotencyToken = "Idempotency-Token"

	// StatusOK is the business status the backend reports inside a successful envelope.
	StatusOK = 200

	maxResponseBytes = 4 << 20
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

func (f TokenSourceFunc) Token(ctx context.Context) (string, bool) { return f(ctx) }

// UnauthorizedHandler runs whenever the backend answers 401.
type UnauthorizedHandler func(ctx context.Context)

// Envelope is the backend response wrapper.
type Envelope struct {
	Status *int            `json:"status,omitempty"`
	Msg    string          `json:"msg,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the data payload into out. Missing data leaves out untouched.
func (e *Envelope) Decode(out any) error {
	if e == nil || out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed response data")
	}
	return nil
}

// Request describes a single backend call.
type Request struct {
	// Operation labels logs and metrics.
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Header    http.Header
	// SkipUnauthorizedHandler keeps a 401 from triggering the session teardown hook.
	SkipUnauthorizedHandler bool
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	logg           *logger.Logger
	metrics        *metrics.ClientMetrics
	onUnauthorized UnauthorizedHandler
	requestID      func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUnauthorizedHandler installs the 401 hook. It is fixed for the lifetime of the client.
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

func NewClient(cfg config.APIConfig, tokens TokenSource, logg *logger.Logger, m *metrics.ClientMetrics, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:   cfg.Endpoint(),
		http:      &http.Client{Timeout: timeout},
		tokens:    tokens,
		logg:      logg,
		metrics:   m,
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved API root including the /api prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs req and returns the decoded envelope.
// Non-2xx responses, transport failures and business failures inside a 2xx envelope are
// returned as *pkgerrors.Error with Status set to the HTTP status, StatusNetwork or StatusUnknown.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	requestID := c.requestID()
	ctx = c.logg.WithFields(ctx, map[string]any{
		"request_id": requestID,
		"operation":  req.Operation,
		"method":     req.Method,
		"path":       req.Path,
	})

	httpReq, err := c.newRequest(ctx, req, requestID)
	if err != nil {
		c.logg.Error(ctx, "api.request_build_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, messageOr(err.Error(), pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage))
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	c.metrics.ObserveDuration(req.Operation, time.Since(start))
	if err != nil {
		c.logg.Error(ctx, "api.network_error", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, pkgerrors.MetadataFor(pkgerrors.CodeNetwork).PublicMessage).
			WithStatus(pkgerrors.StatusNetwork)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logg.Error(ctx, "api.read_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, pkgerrors.MetadataFor(pkgerrors.CodeNetwork).PublicMessage).
			WithStatus(pkgerrors.StatusNetwork)
	}

	ctx = c.logg.WithField(ctx, "http_status", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.failure(ctx, req, resp.StatusCode, body)
	}

	env := &Envelope{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, env); err != nil {
			c.logg.Error(ctx, "api.malformed_response", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed response").WithStatus(resp.StatusCode)
		}
	}
	if env.Status != nil && *env.Status != StatusOK {
		c.logg.Warn(ctx, "api.business_failure")
		return env, pkgerrors.New(pkgerrors.CodeBusiness, messageOr(env.Msg, pkgerrors.MetadataFor(pkgerrors.CodeBusiness).PublicMessage)).
			WithStatus(resp.StatusCode).
			WithDetails(rawDetails(env.Data))
	}
	c.logg.Debug(ctx, "api.response")
	return env, nil
}

func (c *Client) newRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)

	hasToken := false
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(ctx); ok {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
			hasToken = true
		}
	}
	c.logg.Debug(c.logg.WithField(ctx, "auth", hasToken), "api.request")
	return httpReq, nil
}

func (c *Client) failure(ctx context.Context, req Request, status int, body []byte) error {
	var data any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			data = string(body)
		}
	}

	switch status {
	case http.StatusUnauthorized:
		c.logg.Warn(ctx, "api.unauthorized")
		if !req.SkipUnauthorizedHandler && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
	case http.StatusForbidden:
		c.logg.Warn(ctx, "api.forbidden")
	case http.StatusNotFound:
		c.logg.Warn(ctx, "api.not_found")
	default:
		c.logg.Error(ctx, "api.unexpected_status", nil)
	}

	return pkgerrors.FromStatus(status, messageOr(serverMessage(data), pkgerrors.MetadataFor(pkgerrors.CodeBusiness).PublicMessage)).
		WithDetails(data)
}

func serverMessage(data any) string {
	fields, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "msg"} {
		if msg, ok := fields[key].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

func rawDetails(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return pkgerrors.StatusOf(err) == http.StatusUnauthorized
}

// IsNetwork reports whether err is a transport failure with no response.
func IsNetwork(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeNetwork
}

var errNoData = errors.New("response carried no data")

// DecodeRequired is Decode but fails when the envelope has no data payload.
func DecodeRequired(env *Envelope, out any) error {
	if env == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errNoData, "Invalid response: missing data")
	}
	return env.Decode(out)
}
