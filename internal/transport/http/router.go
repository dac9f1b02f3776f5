// Package httptransport exposes the wizard engine over HTTP. Pages are
// returned as processedPage JSON for a rendering collaborator; every state
// change answers with a redirect.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/gov-cy/govcy-express-services-sub001/internal/conditions"
	"github.com/gov-cy/govcy-express-services-sub001/internal/eligibility"
	"github.com/gov-cy/govcy-express-services-sub001/internal/multiplethings"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/metrics"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/middleware"
	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/submission"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/httputil"
)

// EligibilityChecker gates access to a service.
type EligibilityChecker interface {
	Check(ctx context.Context, sess *session.Session, s *site.Site) (eligibility.Result, error)
}

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, sess *session.Session, s *site.Site, lang string) (submission.Result, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler serves every route of every registered site.
type Handler struct {
	sites       *site.Registry
	conditions  *conditions.Engine
	items       *multiplethings.Manager
	eligibility EligibilityChecker
	submitter   Submitter
	sanitizer   *bluemonday.Policy
	health      map[string]HealthCheck
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithConditions(e *conditions.Engine) Option {
	return func(h *Handler) {
		h.conditions = e
	}
}

func WithItems(m *multiplethings.Manager) Option {
	return func(h *Handler) {
		h.items = m
	}
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.health[name] = check
	}
}

// New creates a Handler.
func New(sites *site.Registry, checker EligibilityChecker, submitter Submitter, opts ...Option) *Handler {
	h := &Handler{
		sites:       sites,
		eligibility: checker,
		submitter:   submitter,
		sanitizer:   bluemonday.StrictPolicy(),
		health:      make(map[string]HealthCheck),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.conditions == nil {
		h.conditions = conditions.New(conditions.WithLogger(h.logger), conditions.WithMetrics(h.metrics))
	}
	if h.items == nil {
		h.items = multiplethings.New(multiplethings.WithLogger(h.logger))
	}
	return h
}

// Register mounts the health check and the site routes. Site routes run
// behind the session middleware and require a signed-in user.
func (h *Handler) Register(r chi.Router, sessions *middleware.Sessions) {
	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RedirectCounter)
		r.Use(sessions.Middleware)
		r.Use(middleware.RequireUser(h.logger))

		r.Route("/{siteID}", func(r chi.Router) {
			r.Get("/", h.handleSiteRoot)
			r.Get("/"+submission.ReviewPage, h.handleReview)
			r.Post("/"+submission.ReviewPage, h.handleSubmit)
			r.Get("/"+submission.SuccessPage, h.handleSuccess)

			r.Get("/{pageURL}", h.handlePage)
			r.Post("/{pageURL}", h.handlePagePost)

			r.Get("/{pageURL}/multiple/add", h.handleAddForm)
			r.Post("/{pageURL}/multiple/add", h.handleAdd)
			r.Get("/{pageURL}/multiple/edit/{index}", h.handleEditForm)
			r.Post("/{pageURL}/multiple/edit/{index}", h.handleEdit)
			r.Get("/{pageURL}/multiple/delete/{index}", h.handleDeleteForm)
			r.Post("/{pageURL}/multiple/delete/{index}", h.handleDelete)
		})
	})
}

// NewRouter builds the root router with the shared middleware chain.
func NewRouter(h *Handler, sessions *middleware.Sessions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Latency(h.metrics))
	h.Register(r, sessions)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.health))
	for name := range h.health {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := h.health[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "sites": h.sites.IDs()})
}
