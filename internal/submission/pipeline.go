// Package submission validates a whole service, posts it to the submission
// API and records the outcome in the session.
package submission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gov-cy/govcy-express-services-sub001/internal/audit"
	"github.com/gov-cy/govcy-express-services-sub001/internal/conditions"
	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/multiplethings"
	"github.com/gov-cy/govcy-express-services-sub001/internal/notification"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/requestcontext"
)

const (
	// ReviewPage is the error-summary view of a service.
	ReviewPage = "review"
	// SuccessPage shows the stored submission record.
	SuccessPage = "success"
)

// Notifier sends the post-submission notification without blocking.
type Notifier interface {
	Dispatch(ctx context.Context, ep *site.Endpoint, user gateway.TokenHolder, msg notification.Message)
}

// Result tells the caller where to send the user.
type Result struct {
	Redirect        string
	ReferenceNumber string
	// Invalid is set when validation failed and nothing was submitted.
	Invalid bool
}

// Pipeline runs submissions.
type Pipeline struct {
	gateway         gateway.Requester
	conditions      *conditions.Engine
	items           *multiplethings.Manager
	notifier        Notifier
	audit           audit.Emitter
	lookup          site.Lookup
	logger          *slog.Logger
	metrics         *metrics.Metrics
	allowSelfSigned bool
	maxAttempts     int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithConditions sets the engine that decides which pages are skipped.
func WithConditions(e *conditions.Engine) Option {
	return func(p *Pipeline) {
		p.conditions = e
	}
}

// WithItems sets the manager used to title multipleThings items.
func WithItems(m *multiplethings.Manager) Option {
	return func(p *Pipeline) {
		p.items = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

func WithAudit(e audit.Emitter) Option {
	return func(p *Pipeline) {
		p.audit = e
	}
}

func WithEnvLookup(lookup site.Lookup) Option {
	return func(p *Pipeline) {
		p.lookup = lookup
	}
}

func WithAllowSelfSigned(allow bool) Option {
	return func(p *Pipeline) {
		p.allowSelfSigned = allow
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) {
		p.maxAttempts = n
	}
}

// New creates a Pipeline.
func New(gw gateway.Requester, opts ...Option) *Pipeline {
	p := &Pipeline{
		gateway: gw,
		lookup:  site.EnvLookup,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.conditions == nil {
		p.conditions = conditions.New(conditions.WithLogger(p.logger), conditions.WithMetrics(p.metrics))
	}
	if p.items == nil {
		p.items = multiplethings.New(multiplethings.WithLogger(p.logger))
	}
	return p
}

// ActivePages returns the pages of s whose conditions do not skip them, in
// declaration order. Each page gets its own redirect counter.
func (p *Pipeline) ActivePages(ctx context.Context, sess *session.Session, s *site.Site) []*site.Page {
	data := sess.DataLayer()
	pages := make([]*site.Page, 0, len(s.Pages))
	for i := range s.Pages {
		page := &s.Pages[i]
		outcome := p.conditions.Evaluate(requestcontext.WithRedirectCounter(ctx), s.ID(), page, data)
		if !outcome.Result {
			continue
		}
		pages = append(pages, page)
	}
	return pages
}

// Validate checks the stored answers of every active page and returns all
// errors found, keyed pageURL.name.
func (p *Pipeline) Validate(ctx context.Context, sess *session.Session, s *site.Site) (validation.Errors, error) {
	return p.validate(sess, s, p.ActivePages(ctx, sess, s))
}

func (p *Pipeline) validate(sess *session.Session, s *site.Site, pages []*site.Page) (validation.Errors, error) {
	siteID := s.ID()
	all := make(validation.Errors)
	for i, page := range pages {
		pageURL := page.PageData.URL
		order := (i + 1) * 100000

		if page.MultipleThings != nil {
			errs, err := multiplethings.ValidateItems(page, sess.PageItems(siteID, pageURL))
			if err != nil {
				return nil, err
			}
			for k, v := range errs.WithPage(pageURL, order) {
				all[k] = v
			}
			continue
		}

		elements := page.FormElements()
		if len(elements) == 0 {
			continue
		}
		formData := sess.PageData(siteID, pageURL)
		if formData == nil {
			formData = map[string]any{}
		}
		for k, v := range validation.ValidateFormElements(elements, formData).WithPage(pageURL, order) {
			all[k] = v
		}
	}
	return all, nil
}

// Submit validates the service and, when every page is valid, posts it.
// Validation errors are stored at site scope and the user is sent to the
// review page with an error flag. A failed answer with a configured error
// page redirects there; an unmapped failure code is a configuration error.
func (p *Pipeline) Submit(ctx context.Context, sess *session.Session, s *site.Site, lang string) (Result, error) {
	siteID := s.ID()
	if s.Site.SubmissionAPIEndpoint == nil {
		return Result{}, dErrors.Newf(dErrors.CodeConfiguration, "site %s has no submission endpoint", siteID)
	}
	ep, err := s.Site.SubmissionAPIEndpoint.Resolve(p.lookup)
	if err != nil {
		return Result{}, err
	}

	pages := p.ActivePages(ctx, sess, s)
	errs, err := p.validate(sess, s, pages)
	if err != nil {
		return Result{}, err
	}
	if len(errs) > 0 {
		sess.StoreSiteValidationErrors(siteID, errs)
		p.metrics.IncrementSubmission(siteID, "invalid")
		return Result{Redirect: pagePath(siteID, ReviewPage) + "?hasError=1", Invalid: true}, nil
	}

	payload := buildPayload(ctx, sess, s, pages, lang, p.items)
	resp, err := p.gateway.Do(ctx, gateway.Request{
		Method:          ep.Method,
		URL:             ep.URL,
		Body:            payload,
		UseAccessToken:  true,
		User:            sess.GetUser(),
		Headers:         gateway.EndpointHeaders(ep),
		MaxAttempts:     p.maxAttempts,
		AllowSelfSigned: p.allowSelfSigned,
		Kind:            "submission",
	})
	if err != nil {
		p.metrics.IncrementSubmission(siteID, "error")
		p.emit(ctx, sess, audit.ActionSubmissionFailed, siteID, "", 0)
		return Result{}, err
	}

	if !resp.Succeeded {
		code := resp.Code()
		p.metrics.IncrementSubmission(siteID, "rejected")
		p.emit(ctx, sess, audit.ActionSubmissionFailed, siteID, "", code)
		page, ok := ep.ErrorPages[code]
		if !ok {
			return Result{}, dErrors.Newf(dErrors.CodeConfiguration,
				"submission for %s failed with unmapped error code %d", siteID, code)
		}
		p.logger.WarnContext(ctx, "submission rejected",
			"site_id", siteID,
			"error_code", code,
			"error_message", resp.Message(),
		)
		return Result{Redirect: page}, nil
	}

	ref := referenceNumber(resp)
	if ref == "" {
		p.logger.WarnContext(ctx, "submission succeeded without reference number", "site_id", siteID)
	}
	sess.StoreSubmissionData(siteID, session.SubmissionRecord{
		ReferenceNumber: ref,
		SubmittedAt:     requestcontext.Now(ctx),
		SubmissionData:  payload.SubmissionData,
		Response:        resp.Data,
	})
	sess.ClearInputData(siteID)
	p.metrics.IncrementSubmission(siteID, "succeeded")
	p.emit(ctx, sess, audit.ActionSubmissionSucceeded, siteID, ref, 0)
	p.logger.InfoContext(ctx, "submission succeeded", "site_id", siteID, "reference_number", ref)

	if p.notifier != nil {
		msg := notification.Message{ReferenceNumber: ref, SiteID: siteID, Lang: lang, Email: payload.SubmissionEmail}
		p.notifier.Dispatch(ctx, s.Site.NotificationAPIEndpoint, sess.GetUser(), msg)
	}
	return Result{Redirect: pagePath(siteID, SuccessPage), ReferenceNumber: ref}, nil
}

func (p *Pipeline) emit(ctx context.Context, sess *session.Session, action audit.Action, siteID, ref string, code int) {
	if p.audit == nil {
		return
	}
	err := p.audit.Emit(ctx, audit.Event{
		Action:          action,
		SiteID:          siteID,
		SessionID:       sess.ID,
		ReferenceNumber: ref,
		ErrorCode:       code,
		RequestID:       requestcontext.RequestID(ctx),
		Timestamp:       requestcontext.Now(ctx),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "audit emit failed", "site_id", siteID, "action", action, "error", err)
	}
}

// referenceNumber reads the server-issued reference from the answer's data.
func referenceNumber(resp *gateway.Response) string {
	data := resp.DataMap()
	for _, key := range []string{"referenceValue", "referenceNumber", "ReferenceNumber"} {
		if v, ok := data[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func pagePath(siteID, pageURL string) string {
	return "/" + siteID + "/" + pageURL
}
