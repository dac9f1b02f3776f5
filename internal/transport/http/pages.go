package httptransport

import (
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gov-cy/govcy-express-services-sub001/internal/multiplethings"
	"github.com/gov-cy/govcy-express-services-sub001/internal/platform/middleware"
	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	"github.com/gov-cy/govcy-express-services-sub001/internal/submission"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/httputil"
)

const (
	errorFlag   = "hasError"
	routeParam  = "route"
	routeReview = "review"
)

// ProcessedPage is the page configuration handed to the renderer.
type ProcessedPage struct {
	PageData     site.PageData     `json:"pageData"`
	PageTemplate site.PageTemplate `json:"pageTemplate"`
}

// PageResponse is the body of every page GET.
type PageResponse struct {
	SiteID        string                     `json:"siteId"`
	Lang          string                     `json:"lang"`
	ProcessedPage ProcessedPage              `json:"processedPage"`
	FormData      map[string]any             `json:"formData,omitempty"`
	Errors        *session.ErrorBundle       `json:"errors,omitempty"`
	Hub           *multiplethings.HubView    `json:"hub,omitempty"`
	Form          *multiplethings.FormView   `json:"form,omitempty"`
	Delete        *multiplethings.DeleteView `json:"delete,omitempty"`
}

// request bundles what every site route resolves first.
type request struct {
	site *site.Site
	page *site.Page
	sess *session.Session
	lang string
}

func (h *Handler) resolveSite(w http.ResponseWriter, r *http.Request) (*request, bool) {
	s, err := h.sites.Get(chi.URLParam(r, "siteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "session missing from context"))
		return nil, false
	}
	sess.InitializeSiteData(s.ID(), "")
	return &request{site: s, sess: sess, lang: language(r, s)}, true
}

// resolvePage loads the site and page, runs the eligibility checks and then
// the page conditions. It answers the request itself when any of them
// redirects or fails.
func (h *Handler) resolvePage(w http.ResponseWriter, r *http.Request) (*request, bool) {
	req, ok := h.resolveSite(w, r)
	if !ok {
		return nil, false
	}
	page, err := req.site.PageConfigData(chi.URLParam(r, "pageURL"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	req.page = page

	if !h.checkEligibility(w, r, req) {
		return nil, false
	}

	ctx := r.Context()
	outcome := h.conditions.Evaluate(ctx, req.site.ID(), page, req.sess.DataLayer())
	if !outcome.Result {
		http.Redirect(w, r, target(req.site.ID(), outcome.Redirect), http.StatusFound)
		return nil, false
	}
	return req, true
}

func (h *Handler) checkEligibility(w http.ResponseWriter, r *http.Request, req *request) bool {
	res, err := h.eligibility.Check(r.Context(), req.sess, req.site)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	if !res.Eligible {
		http.Redirect(w, r, target(req.site.ID(), res.ErrorPage), http.StatusFound)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	if dErrors.ToHTTPStatus(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetRequestID(r),
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		h.logger.WarnContext(r.Context(), "request rejected",
			"request_id", middleware.GetRequestID(r),
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) handleSiteRoot(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveSite(w, r)
	if !ok {
		return
	}
	urls := req.site.PageURLs()
	if len(urls) == 0 {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeConfiguration, "site %s has no pages", req.site.ID()))
		return
	}
	first := "index"
	if _, err := req.site.PageConfigData(first); err != nil {
		first = urls[0]
	}
	http.Redirect(w, r, pagePath(req.site.ID(), first), http.StatusFound)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolvePage(w, r)
	if !ok {
		return
	}
	siteID, pageURL := req.site.ID(), req.page.PageData.URL
	resp := h.pageResponse(req)

	if req.page.MultipleThings != nil {
		hub, err := h.items.Hub(r.Context(), req.sess, siteID, req.page, req.lang)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		resp.Hub = hub
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	resp.FormData = req.sess.PageData(siteID, pageURL)
	resp.Errors = req.sess.TakePageValidationErrors(siteID, pageURL, session.ContextPage)
	if resp.Errors != nil && resp.Errors.FormData != nil {
		resp.FormData = resp.Errors.FormData
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handlePagePost stores a single page's answers, or continues from a
// multipleThings hub.
func (h *Handler) handlePagePost(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolvePage(w, r)
	if !ok {
		return
	}
	siteID, pageURL := req.site.ID(), req.page.PageData.URL

	if req.page.MultipleThings != nil {
		next, err := h.items.Continue(r.Context(), req.sess, siteID, req.page)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	formData, err := h.formData(r, req.page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if errs := validation.ValidateFormElements(req.page.FormElements(), formData); len(errs) > 0 {
		req.sess.StorePageValidationErrors(siteID, pageURL, session.ContextPage, errs, formData)
		http.Redirect(w, r, withQuery(pagePath(siteID, pageURL), r.URL.Query().Get(routeParam), true), http.StatusSeeOther)
		return
	}
	req.sess.StorePageData(siteID, pageURL, formData)

	next := pagePath(siteID, req.page.PageData.NextPage)
	if r.URL.Query().Get(routeParam) == routeReview || req.page.PageData.NextPage == "" {
		next = pagePath(siteID, submission.ReviewPage)
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) pageResponse(req *request) PageResponse {
	return PageResponse{
		SiteID: req.site.ID(),
		Lang:   req.lang,
		ProcessedPage: ProcessedPage{
			PageData:     req.page.PageData,
			PageTemplate: req.page.PageTemplate,
		},
	}
}

// formData keeps the page's inputs from the posted form, HTML stripped.
// Inputs posted more than once (checkboxes) become lists.
func (h *Handler) formData(r *http.Request, page *site.Page) (map[string]any, error) {
	if err := r.ParseForm(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body")
	}
	out := make(map[string]any)
	for _, name := range page.InputNames() {
		values, ok := r.PostForm[name]
		if !ok {
			continue
		}
		clean := make([]string, 0, len(values))
		for _, v := range values {
			clean = append(clean, h.sanitize(v))
		}
		if len(clean) == 1 {
			out[name] = clean[0]
		} else {
			out[name] = clean
		}
	}
	return out, nil
}

// sanitize strips markup, leaving plain text as typed.
func (h *Handler) sanitize(v string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitizer.Sanitize(v)))
}

func language(r *http.Request, s *site.Site) string {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		return s.Site.DefaultLang()
	}
	if len(s.Site.Languages) == 0 {
		return lang
	}
	for _, l := range s.Site.Languages {
		if l == lang {
			return lang
		}
	}
	return s.Site.DefaultLang()
}

func pagePath(siteID, pageURL string) string {
	return multiplethings.PagePath(siteID, pageURL)
}

// target turns a configured redirect into a path. Page names are made
// relative to the site; absolute paths and URLs are kept.
func target(siteID, redirect string) string {
	if strings.HasPrefix(redirect, "/") {
		return redirect
	}
	if u, err := url.Parse(redirect); err == nil && u.IsAbs() {
		return redirect
	}
	return pagePath(siteID, redirect)
}

func withQuery(path, route string, hasError bool) string {
	q := url.Values{}
	if route != "" {
		q.Set(routeParam, route)
	}
	if hasError {
		q.Set(errorFlag, "1")
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func index(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "item %q not found", raw)
	}
	return n, nil
}
