// Package eligibility gates access to a service behind its configured
// eligibility APIs, caching each answer in the session.
package eligibility

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/gov-cy/govcy-express-services-sub001/internal/audit"
	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/requestcontext"
)

// Result is the outcome of running every eligibility check of a site.
// When Eligible is false, ErrorPage is the configured page for ErrorCode.
type Result struct {
	Eligible  bool
	ErrorCode int
	ErrorPage string
}

// Checker runs eligibility checks through the gateway.
type Checker struct {
	gateway         gateway.Requester
	lookup          site.Lookup
	audit           audit.Emitter
	logger          *slog.Logger
	metrics         *metrics.Metrics
	allowSelfSigned bool
	maxAttempts     int
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithAudit records denied checks.
func WithAudit(e audit.Emitter) Option {
	return func(c *Checker) {
		c.audit = e
	}
}

// WithEnvLookup overrides how endpoint variable names are resolved.
func WithEnvLookup(lookup site.Lookup) Option {
	return func(c *Checker) {
		c.lookup = lookup
	}
}

// WithAllowSelfSigned accepts self-signed upstream certificates.
func WithAllowSelfSigned(allow bool) Option {
	return func(c *Checker) {
		c.allowSelfSigned = allow
	}
}

// WithMaxAttempts sets the per-call attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Checker) {
		c.maxAttempts = n
	}
}

// New creates a Checker.
func New(gw gateway.Requester, opts ...Option) *Checker {
	c := &Checker{
		gateway: gw,
		lookup:  site.EnvLookup,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check runs the site's eligibility endpoints in order. A fresh cached answer
// is reused; otherwise the endpoint is called and its answer cached whether or
// not it succeeded. The first failed answer stops the run. A failure code
// without a configured page is a forbidden error.
func (c *Checker) Check(ctx context.Context, sess *session.Session, s *site.Site) (Result, error) {
	siteID := s.ID()
	for _, ep := range s.Site.EligibilityAPIEndpoints {
		resolved, err := ep.Resolve(c.lookup)
		if err != nil {
			return Result{}, err
		}
		resp, err := c.answer(ctx, sess, siteID, cacheKey(ep, resolved.Method), resolved)
		if err != nil {
			return Result{}, err
		}
		if resp.Succeeded {
			continue
		}

		code := resp.Code()
		c.emitDenied(ctx, sess, siteID, code)
		page, ok := resolved.ErrorPages[code]
		if !ok {
			return Result{}, dErrors.Newf(dErrors.CodeForbidden, "not eligible for %s (code %d)", siteID, code)
		}
		return Result{Eligible: false, ErrorCode: code, ErrorPage: page}, nil
	}
	return Result{Eligible: true}, nil
}

// cacheKey identifies one eligibility call: method, url variable name and
// configured params. It uses names rather than resolved values so it stays
// stable across deployments, and two endpoints that share a url variable but
// ask different questions get separate entries.
func cacheKey(ep site.Endpoint, method string) string {
	key := method + " " + ep.URL
	if len(ep.Params) == 0 {
		return key
	}
	q := make(url.Values, len(ep.Params))
	for k, v := range ep.Params {
		q.Set(k, v)
	}
	return key + "?" + q.Encode()
}

// answer returns the cached or freshly fetched response for one endpoint.
func (c *Checker) answer(ctx context.Context, sess *session.Session, siteID, key string, ep site.Resolved) (*gateway.Response, error) {
	now := requestcontext.Now(ctx)
	if cached, ok := sess.SiteEligibilityResult(siteID, key, ep.CacheTTL, now); ok {
		c.metrics.IncrementEligibilityCache(true)
		return cached, nil
	}
	c.metrics.IncrementEligibilityCache(false)

	req := gateway.Request{
		Method:          ep.Method,
		URL:             ep.URL,
		UseAccessToken:  true,
		User:            sess.GetUser(),
		Headers:         gateway.EndpointHeaders(ep),
		MaxAttempts:     c.maxAttempts,
		AllowSelfSigned: c.allowSelfSigned,
		Kind:            "eligibility",
	}
	if len(ep.Params) > 0 {
		if ep.Method == "GET" {
			req.URL = withQuery(ep.URL, ep.Params)
		} else {
			req.Body = ep.Params
		}
	}

	resp, err := c.gateway.Do(ctx, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "eligibility check failed", "site_id", siteID, "endpoint", key, "error", err)
		return nil, err
	}
	sess.StoreSiteEligibilityResult(siteID, key, *resp, now)
	return resp, nil
}

func (c *Checker) emitDenied(ctx context.Context, sess *session.Session, siteID string, code int) {
	if c.audit == nil {
		return
	}
	err := c.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionEligibilityDenied,
		SiteID:    siteID,
		SessionID: sess.ID,
		ErrorCode: code,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "audit emit failed", "site_id", siteID, "error", err)
	}
}

func withQuery(raw string, params map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
