// Package gateway funnels every outbound API call through one retrying,
// normalizing HTTP client.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
)

const (
	defaultAttemptTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 500 * time.Millisecond
	maxResponseBytes      = 5 << 20
)

// TokenHolder exposes the access token of the signed-in user.
type TokenHolder interface {
	BearerToken() string
}

// Request describes one logical API call. It may be sent several times.
type Request struct {
	Method          string
	URL             string
	Body            any
	UseAccessToken  bool
	User            TokenHolder
	Headers         map[string]string
	MaxAttempts     int
	AllowSelfSigned bool
	// Kind labels metrics and spans, e.g. "submission" or "eligibility".
	Kind string
}

// Requester is satisfied by Client and by test doubles.
type Requester interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Client sends Requests with a fixed per-attempt timeout and a bounded number of attempts.
type Client struct {
	httpClient     *http.Client
	insecureClient *http.Client
	attemptTimeout time.Duration
	maxAttempts    int
	retryDelay     time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithAttemptTimeout bounds each individual attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithMaxAttempts sets the default attempt budget for requests that do not set one.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between attempts. Zero retries immediately.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithHTTPClient replaces the verifying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client. Two transports are kept: one verifying TLS and one
// accepting self-signed certificates for endpoints configured to allow them.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Transport: newTransport(false)},
		insecureClient: &http.Client{Transport: newTransport(true)},
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		retryDelay:     defaultRetryDelay,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func newTransport(allowSelfSigned bool) *http.Transport {
	d := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if allowSelfSigned {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per endpoint
	}
	return tr
}

// attemptError is a retryable failure; message carries the upstream error text when present.
type attemptError struct {
	status  int
	message string
	err     error
}

func (e *attemptError) Error() string {
	switch {
	case e.message != "":
		return e.message
	case e.err != nil:
		return e.err.Error()
	default:
		return fmt.Sprintf("unexpected status %d", e.status)
	}
}

func (e *attemptError) Unwrap() error {
	return e.err
}

// Do sends req, retrying non-200 answers and transport failures until the
// attempt budget is spent. A 200 answer whose body cannot be normalized is a
// protocol error and is not retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	kind := req.Kind
	if kind == "" {
		kind = "api"
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	var payload []byte
	if req.Body != nil && method != http.MethodGet {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode request body")
		}
	}

	ctx, span := otel.Tracer("govcy/gateway").Start(ctx, "gateway."+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("gateway.kind", kind),
		attribute.Int("gateway.max_attempts", maxAttempts),
	)

	start := time.Now()
	defer func() {
		c.metrics.ObserveGatewayLatency(kind, time.Since(start))
	}()

	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		resp, err := c.attempt(ctx, method, req, payload)
		if err == nil {
			c.metrics.IncrementGatewayAttempt(kind, "ok")
			return resp, nil
		}
		var ae *attemptError
		if !errors.As(err, &ae) {
			c.metrics.IncrementGatewayAttempt(kind, "protocol")
			return nil, backoff.Permanent(err)
		}
		c.metrics.IncrementGatewayAttempt(kind, "retry")
		c.logger.WarnContext(ctx, "api attempt failed",
			"kind", kind,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"status", ae.status,
			"error", ae.Error(),
		)
		return nil, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(maxAttempts-1)),
		ctx,
	)
	resp, err := backoff.RetryWithData(operation, policy)
	span.SetAttributes(attribute.Int("gateway.attempts", attempt))
	if err == nil {
		return resp, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var ae *attemptError
	if errors.As(err, &ae) {
		c.metrics.IncrementGatewayAttempt(kind, "exhausted")
		c.logger.ErrorContext(ctx, "api request failed after retries",
			"kind", kind,
			"attempts", attempt,
			"error", ae.Error(),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, ae.Error())
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return nil, err
	}
	return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "api request aborted")
}

func (c *Client) attempt(ctx context.Context, method string, req Request, payload []byte) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URL, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "build api request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}
	if req.UseAccessToken && req.User != nil {
		if token := req.User.BearerToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	hc := c.httpClient
	if req.AllowSelfSigned {
		hc = c.insecureClient
	}
	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, &attemptError{err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &attemptError{status: httpResp.StatusCode, err: err}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &attemptError{status: httpResp.StatusCode, message: upstreamMessage(raw)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProtocol, "response body is not a JSON object")
	}
	return Normalize(decoded)
}

// upstreamMessage extracts an error message from a failed response body, if any.
func upstreamMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg, ok := pick(body, "ErrorMessage", "errorMessage"); ok {
		if s, ok := msg.(string); ok {
			return s
		}
	}
	return ""
}

// EndpointHeaders returns the identification headers every upstream expects.
func EndpointHeaders(ep site.Resolved) map[string]string {
	h := map[string]string{
		"client-key": ep.ClientKey,
		"service-id": ep.ServiceID,
	}
	if ep.DsfGtwAPIKey != "" {
		h["dsfgtw-api-key"] = ep.DsfGtwAPIKey
	}
	return h
}
