package httptransport

import (
	"net/http"

	"github.com/gov-cy/govcy-express-services-sub001/internal/multiplethings"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/httputil"
)

// resolveList is resolvePage for the multipleThings sub-routes. A page
// without the configuration block is a configuration error.
func (h *Handler) resolveList(w http.ResponseWriter, r *http.Request) (*request, bool) {
	req, ok := h.resolvePage(w, r)
	if !ok {
		return nil, false
	}
	if req.page.MultipleThings == nil {
		h.fail(w, r, dErrors.Newf(dErrors.CodeConfiguration, "page %s has no multipleThings configuration", req.page.PageData.URL))
		return nil, false
	}
	return req, true
}

func (h *Handler) handleAddForm(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveList(w, r)
	if !ok {
		return
	}
	form, err := h.items.AddForm(req.sess, req.site.ID(), req.page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := h.pageResponse(req)
	resp.Form = form
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveList(w, r)
	if !ok {
		return
	}
	formData, err := h.formData(r, req.page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	next, err := h.items.Add(r.Context(), req.sess, req.site.ID(), req.page, formData)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) handleEditForm(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveList(w, r)
	if !ok {
		return
	}
	i, err := index(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form, err := h.items.EditForm(req.sess, req.site.ID(), req.page, i)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := h.pageResponse(req)
	resp.Form = form
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveList(w, r)
	if !ok {
		return
	}
	i, err := index(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	formData, err := h.formData(r, req.page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	next, err := h.items.Edit(r.Context(), req.sess, req.site.ID(), req.page, i, formData)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveList(w, r)
	if !ok {
		return
	}
	i, err := index(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.items.DeleteForm(r.Context(), req.sess, req.site.ID(), req.page, i)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := h.pageResponse(req)
	resp.Delete = view
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveList(w, r)
	if !ok {
		return
	}
	i, err := index(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	choice := h.sanitize(r.PostForm.Get(multiplethings.ChoiceField))
	next, err := h.items.Delete(r.Context(), req.sess, req.site.ID(), req.page, i, choice)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}
