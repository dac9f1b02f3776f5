package httptransport

import (
	"net/http"

	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/httputil"
)

// ReviewResponse carries the service-wide errors of the last submit attempt.
type ReviewResponse struct {
	SiteID string               `json:"siteId"`
	Lang   string               `json:"lang"`
	Errors *session.ErrorBundle `json:"errors,omitempty"`
}

// SuccessResponse is the stored submission record.
type SuccessResponse struct {
	SiteID     string                    `json:"siteId"`
	Lang       string                    `json:"lang"`
	Submission *session.SubmissionRecord `json:"submission"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveSite(w, r)
	if !ok {
		return
	}
	if !h.checkEligibility(w, r, req) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReviewResponse{
		SiteID: req.site.ID(),
		Lang:   req.lang,
		Errors: req.sess.TakeSiteSubmissionErrors(req.site.ID()),
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveSite(w, r)
	if !ok {
		return
	}
	if !h.checkEligibility(w, r, req) {
		return
	}
	res, err := h.submitter.Submit(r.Context(), req.sess, req.site, req.lang)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, target(req.site.ID(), res.Redirect), http.StatusSeeOther)
}

func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveSite(w, r)
	if !ok {
		return
	}
	rec := req.sess.SubmissionData(req.site.ID())
	if rec == nil {
		h.fail(w, r, dErrors.Newf(dErrors.CodeNotFound, "no submission for %s", req.site.ID()))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SuccessResponse{SiteID: req.site.ID(), Lang: req.lang, Submission: rec})
}
