// Package notification sends the best-effort "submission received" message
// through the gateway. Failures never reach the citizen.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/circuit"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 1
)

// ErrCircuitOpen is returned when the notifier is being skipped.
var ErrCircuitOpen = errors.New("notification circuit open")

// Message is the body posted to the notification endpoint.
type Message struct {
	ReferenceNumber string `json:"referenceNumber"`
	SiteID          string `json:"siteId"`
	Lang            string `json:"lang"`
	Email           string `json:"email,omitempty"`
}

// Sender posts Messages to a site's notification endpoint.
type Sender struct {
	gateway         gateway.Requester
	breaker         *circuit.Breaker
	lookup          site.Lookup
	logger          *slog.Logger
	metrics         *metrics.Metrics
	timeout         time.Duration
	maxAttempts     int
	allowSelfSigned bool
	inflight        sync.WaitGroup
}

// Option configures a Sender.
type Option func(*Sender)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sender) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sender) {
		s.metrics = m
	}
}

// WithBreaker replaces the default breaker (5 failures, 30s cooldown).
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sender) {
		s.breaker = b
	}
}

func WithEnvLookup(lookup site.Lookup) Option {
	return func(s *Sender) {
		s.lookup = lookup
	}
}

// WithTimeout bounds a dispatched send, retries included.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithAllowSelfSigned(allow bool) Option {
	return func(s *Sender) {
		s.allowSelfSigned = allow
	}
}

// New creates a Sender.
func New(gw gateway.Requester, opts ...Option) *Sender {
	s := &Sender{
		gateway:     gw,
		lookup:      site.EnvLookup,
		logger:      slog.Default(),
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("notification")
	}
	return s
}

// Send posts msg and waits for the answer. A nil endpoint sends nothing.
func (s *Sender) Send(ctx context.Context, ep *site.Endpoint, user gateway.TokenHolder, msg Message) error {
	if ep == nil {
		return nil
	}
	resolved, err := ep.Resolve(s.lookup)
	if err != nil {
		s.metrics.IncrementNotificationDrop("configuration")
		return err
	}
	if !s.breaker.Allow() {
		s.metrics.IncrementNotificationDrop("circuit_open")
		return ErrCircuitOpen
	}

	resp, err := s.gateway.Do(ctx, gateway.Request{
		Method:          resolved.Method,
		URL:             resolved.URL,
		Body:            msg,
		UseAccessToken:  true,
		User:            user,
		Headers:         gateway.EndpointHeaders(resolved),
		MaxAttempts:     s.maxAttempts,
		AllowSelfSigned: s.allowSelfSigned,
		Kind:            "notification",
	})
	if err == nil && !resp.Succeeded {
		err = &RejectedError{Code: resp.Code(), Message: resp.Message()}
	}
	if err != nil {
		s.metrics.IncrementNotificationDrop("failed")
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "notification circuit opened", "breaker", s.breaker.Name())
		}
		return err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "notification circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}

// Dispatch sends msg in the background on a context detached from ctx's
// cancellation. Errors are logged, never returned.
func (s *Sender) Dispatch(ctx context.Context, ep *site.Endpoint, user gateway.TokenHolder, msg Message) {
	if ep == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		sendCtx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()
		if err := s.Send(sendCtx, ep, user, msg); err != nil {
			s.logger.WarnContext(sendCtx, "notification not sent",
				"site_id", msg.SiteID,
				"reference_number", msg.ReferenceNumber,
				"error", err,
			)
		}
	}()
}

// Wait blocks until every dispatched send has finished.
func (s *Sender) Wait() {
	s.inflight.Wait()
}

// RejectedError is an answer of the notification API with Succeeded false.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return "notification rejected: " + e.Message
	}
	return "notification rejected"
}
