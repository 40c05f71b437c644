// Package backend is the REST client of the finance backend. Every request
// carries the session token and the id of the profile current at request time.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/pkg/metrics"
)

const (
	DefaultBaseURL = "http://localhost:3000/api/v1"

	defaultTimeout    = 10 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 200 * time.Millisecond
	maxResponseBytes  = 4 << 20

	HeaderProfileID = "X-Profile-ID"
	HeaderRequestID = "X-Request-ID"
)

// Config captures the backend connection settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Attempts   uint // GET attempts, including the first
	RetryDelay time.Duration
}

// Client talks to the finance backend.
type Client struct {
	baseURL    string
	http       *http.Client
	attempts   uint
	retryDelay time.Duration
	log        zerolog.Logger

	token          func() string
	profile        func() domain.ProfileID
	onUnauthorized func(ctx context.Context)
}

// Option customises a Client.
type Option func(*Client)

// WithTokenSource sets where the bearer token is read from on every request.
func WithTokenSource(f func() string) Option {
	return func(c *Client) { c.token = f }
}

// WithProfileScope sets where the current profile id is read from on every
// request. Reading it per request keeps refetches in step with switches.
func WithProfileScope(f func() domain.ProfileID) Option {
	return func(c *Client) { c.profile = f }
}

// WithUnauthorizedHandler is called whenever the backend answers 401.
func WithUnauthorizedHandler(f func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = f }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	c := &Client{
		baseURL:    base,
		http:       &http.Client{Timeout: timeout},
		attempts:   attempts,
		retryDelay: delay,
		log:        zerolog.Nop(),
		token:      func() string { return "" },
		profile:    func() domain.ProfileID { return "" },
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Str("component", "backend_client").Logger()
	return c
}

// errorBody is the error envelope of the backend.
type errorBody struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

// do runs one call and decodes a 2xx body into out. GETs are retried on
// transport failures and 5xx responses.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.op, err)
		}
	}

	attempt := func() error { return c.attempt(ctx, cl, payload, out) }
	if cl.method != http.MethodGet {
		return attempt()
	}
	return retry.Do(attempt,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug().Err(err).Str("operation", cl.op).Uint("attempt", n+1).Msg("retrying backend request")
		}),
	)
}

func (c *Client) attempt(ctx context.Context, cl call, payload []byte, out any) error {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := c.profile(); !id.IsZero() {
		req.Header.Set(HeaderProfileID, id.String())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequestDuration.WithLabelValues(cl.op, "error").Observe(time.Since(start).Seconds())
		return &domain.NetworkError{Op: cl.op, Message: err.Error()}
	}
	defer resp.Body.Close()
	metrics.BackendRequestDuration.WithLabelValues(cl.op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.NetworkError{Op: cl.op, Status: resp.StatusCode, Message: "read body: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(ctx, cl.op, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.NetworkError{Op: cl.op, Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

func (c *Client) statusError(ctx context.Context, op string, status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Error
	if msg == "" {
		msg = eb.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		c.log.Warn().Str("operation", op).Msg("backend rejected session")
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return fmt.Errorf("%s: %w: %s", op, domain.ErrUnauthorized, msg)
	case http.StatusUnprocessableEntity:
		fields := decodeFieldErrors(eb.Errors)
		if eb.Error == "" && eb.Message == "" {
			msg = ""
		}
		return fmt.Errorf("%s: %w", op, &domain.ValidationError{Message: msg, Fields: fields})
	default:
		return &domain.NetworkError{Op: op, Status: status, Message: msg}
	}
}

// decodeFieldErrors accepts {"field": ["msg"]}, {"field": "msg"} and ["msg"].
func decodeFieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	var many map[string][]string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one map[string]string
	if err := json.Unmarshal(raw, &one); err == nil {
		out := make(map[string][]string, len(one))
		for k, v := range one {
			out[k] = []string{v}
		}
		return out
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return map[string][]string{"base": list}
	}
	return nil
}

func retryable(err error) bool {
	var ne *domain.NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	return ne.Status == 0 || ne.Status >= 500
}

// statusOf returns the HTTP status carried by err, zero when none.
func statusOf(err error) int {
	var ne *domain.NetworkError
	if errors.As(err, &ne) {
		return ne.Status
	}
	return 0
}

// decodeList accepts a bare JSON array or an object wrapping it under key.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	inner, ok := env[key]
	if !ok {
		return nil, fmt.Errorf("response has neither a list nor a %q field", key)
	}
	var out []T
	if err := json.Unmarshal(inner, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// decodeOne accepts {key: {...}} and a bare object. ok rejects objects that
// decoded without their identity.
func decodeOne[T any](op string, raw json.RawMessage, key string, ok func(T) bool) (*T, error) {
	raw = bytes.TrimSpace(raw)
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if inner, found := wrapped[key]; found {
			raw = inner
		}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &domain.NetworkError{Op: op, Status: http.StatusOK, Message: "decode response: " + err.Error()}
	}
	if !ok(v) {
		return nil, &domain.NetworkError{Op: op, Status: http.StatusOK, Message: "response carries no " + key}
	}
	return &v, nil
}
