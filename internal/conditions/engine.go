// Package conditions decides whether a page renders or redirects.
package conditions

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gov-cy/govcy-express-services-sub001/internal/expression"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/requestcontext"
)

// MaxRedirects is the number of condition redirects one request may produce.
// Past it every page renders.
const MaxRedirects = 10

// Outcome is the result of evaluating a page's conditions.
// Result is true when the page should render; otherwise Redirect names the target.
type Outcome struct {
	Result   bool   `json:"result"`
	Redirect string `json:"redirect,omitempty"`
}

// Render is the outcome for a page that should be shown.
var Render = Outcome{Result: true}

// Engine evaluates ordered page conditions against session data.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for evaluation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the outcome for page given the session's nested site data.
// The data is flattened once and exposed to every expression as dataLayer.
//
// The first condition whose expression yields boolean true wins and the
// request's redirect depth is incremented. Evaluation errors and non-boolean
// results are logged and skipped, so a broken condition never redirects.
func (e *Engine) Evaluate(ctx context.Context, siteID string, page *site.Page, data map[string]any) Outcome {
	if page == nil || len(page.PageData.Conditions) == 0 {
		return Render
	}
	if requestcontext.RedirectDepth(ctx) >= MaxRedirects {
		e.logger.WarnContext(ctx, "redirect limit reached, rendering page",
			"site_id", siteID,
			"page_url", page.PageData.URL,
			"limit", MaxRedirects,
		)
		e.metrics.IncrementRedirectGuardTrip()
		return Render
	}

	var dataLayer map[string]any
	for i, cond := range page.PageData.Conditions {
		if strings.TrimSpace(cond.Expression) == "" || strings.TrimSpace(cond.Redirect) == "" {
			continue
		}
		if dataLayer == nil {
			dataLayer = expression.Flatten(data, "")
		}

		value, err := expression.Evaluate(cond.Expression, dataLayer)
		if err != nil {
			e.logger.WarnContext(ctx, "condition evaluation failed",
				"site_id", siteID,
				"page_url", page.PageData.URL,
				"condition", i,
				"error", err,
			)
			continue
		}
		matched, ok := value.(bool)
		if !ok {
			e.logger.WarnContext(ctx, "condition did not return a boolean",
				"site_id", siteID,
				"page_url", page.PageData.URL,
				"condition", i,
				"value", value,
			)
			continue
		}
		if !matched {
			continue
		}

		requestcontext.IncrementRedirectDepth(ctx)
		e.metrics.IncrementConditionRedirect(siteID)
		return Outcome{Result: false, Redirect: cond.Redirect}
	}
	return Render
}
