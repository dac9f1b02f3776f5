package session

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
)

// InitializeSiteData makes sure the site (and, when given, the page) state
// exists. Existing data is never overwritten.
func (s *Session) InitializeSiteData(siteID, pageURL string) *SiteState {
	if s.Sites == nil {
		s.Sites = make(map[string]*SiteState)
	}
	st, ok := s.Sites[siteID]
	if !ok || st == nil {
		st = newSiteState()
		s.Sites[siteID] = st
	}
	if st.InputData == nil {
		st.InputData = make(map[string]*PageState)
	}
	if st.EligibilityResults == nil {
		st.EligibilityResults = make(map[string]CacheEntry)
	}
	if st.LoadData == nil {
		st.LoadData = make(map[string]any)
	}
	if pageURL != "" {
		if _, ok := st.InputData[pageURL]; !ok {
			st.InputData[pageURL] = &PageState{}
		}
	}
	return st
}

func (s *Session) site(siteID string) *SiteState {
	if s == nil || s.Sites == nil {
		return nil
	}
	return s.Sites[siteID]
}

func (s *Session) page(siteID, pageURL string) *PageState {
	st := s.site(siteID)
	if st == nil {
		return nil
	}
	return st.InputData[pageURL]
}

// StorePageData replaces a single-instance page's form data.
func (s *Session) StorePageData(siteID, pageURL string, formData map[string]any) {
	s.InitializeSiteData(siteID, pageURL)
	s.page(siteID, pageURL).FormData = formData
}

// PageData returns a single-instance page's form data, or nil.
func (s *Session) PageData(siteID, pageURL string) map[string]any {
	if p := s.page(siteID, pageURL); p != nil {
		return p.FormData
	}
	return nil
}

// StorePageItems replaces a multipleThings page's item list.
func (s *Session) StorePageItems(siteID, pageURL string, items []map[string]any) {
	s.InitializeSiteData(siteID, pageURL)
	s.page(siteID, pageURL).Items = items
}

// PageItems returns a multipleThings page's item list. Never nil.
func (s *Session) PageItems(siteID, pageURL string) []map[string]any {
	if p := s.page(siteID, pageURL); p != nil && p.Items != nil {
		return p.Items
	}
	return []map[string]any{}
}

// StorePageDraft sets the single in-progress item of a multipleThings page.
// A nil draft clears it.
func (s *Session) StorePageDraft(siteID, pageURL string, draft map[string]any) {
	s.InitializeSiteData(siteID, pageURL)
	s.page(siteID, pageURL).MultipleDraft = draft
}

// PageDraft returns the in-progress item, or nil.
func (s *Session) PageDraft(siteID, pageURL string) map[string]any {
	if p := s.page(siteID, pageURL); p != nil {
		return p.MultipleDraft
	}
	return nil
}

// StorePageValidationErrors keeps errs and the rejected input under contextKey.
func (s *Session) StorePageValidationErrors(siteID, pageURL, contextKey string, errs validation.Errors, formData map[string]any) {
	s.InitializeSiteData(siteID, pageURL)
	p := s.page(siteID, pageURL)
	if p.ValidationErrors == nil {
		p.ValidationErrors = make(map[string]*ErrorBundle)
	}
	p.ValidationErrors[contextKey] = NewErrorBundle(errs, formData)
}

// TakePageValidationErrors returns and removes the bundle stored under
// contextKey. A second call returns nil.
func (s *Session) TakePageValidationErrors(siteID, pageURL, contextKey string) *ErrorBundle {
	p := s.page(siteID, pageURL)
	if p == nil || p.ValidationErrors == nil {
		return nil
	}
	bundle, ok := p.ValidationErrors[contextKey]
	if !ok {
		return nil
	}
	delete(p.ValidationErrors, contextKey)
	if len(p.ValidationErrors) == 0 {
		p.ValidationErrors = nil
	}
	return bundle
}

// StoreSiteValidationErrors keeps service-wide submission errors.
func (s *Session) StoreSiteValidationErrors(siteID string, errs validation.Errors) {
	st := s.InitializeSiteData(siteID, "")
	st.SubmissionErrors = NewErrorBundle(errs, nil)
}

// TakeSiteSubmissionErrors returns and removes the service-wide errors.
func (s *Session) TakeSiteSubmissionErrors(siteID string) *ErrorBundle {
	st := s.site(siteID)
	if st == nil {
		return nil
	}
	bundle := st.SubmissionErrors
	st.SubmissionErrors = nil
	return bundle
}

// FormDataValue resolves one field, trying the single-instance form data,
// then the multipleThings draft, then the item at index. A field found
// nowhere resolves to "".
func (s *Session) FormDataValue(siteID, pageURL, name string, index *int) any {
	p := s.page(siteID, pageURL)
	if p == nil {
		return ""
	}
	if v, ok := p.FormData[name]; ok {
		return v
	}
	if v, ok := p.MultipleDraft[name]; ok {
		return v
	}
	if index != nil && *index >= 0 && *index < len(p.Items) {
		if v, ok := p.Items[*index][name]; ok {
			return v
		}
	}
	return ""
}

// GetUser returns the signed-in user, or nil.
func (s *Session) GetUser() *User {
	if s == nil {
		return nil
	}
	return s.User
}

// StoreSiteEligibilityResult caches resp for endpointKey at now.
func (s *Session) StoreSiteEligibilityResult(siteID, endpointKey string, resp gateway.Response, now time.Time) {
	st := s.InitializeSiteData(siteID, "")
	st.EligibilityResults[endpointKey] = CacheEntry{Response: resp, Timestamp: now}
}

// SiteEligibilityResult returns the cached response for endpointKey when it
// is no older than maxAge. A zero maxAge always misses.
func (s *Session) SiteEligibilityResult(siteID, endpointKey string, maxAge time.Duration, now time.Time) (*gateway.Response, bool) {
	if maxAge <= 0 {
		return nil, false
	}
	st := s.site(siteID)
	if st == nil {
		return nil, false
	}
	entry, ok := st.EligibilityResults[endpointKey]
	if !ok || now.Sub(entry.Timestamp) > maxAge {
		return nil, false
	}
	resp := entry.Response
	return &resp, true
}

// StoreSiteLoadData merges data into the site's load data.
func (s *Session) StoreSiteLoadData(siteID string, data map[string]any) {
	st := s.InitializeSiteData(siteID, "")
	maps.Copy(st.LoadData, data)
}

// SiteLoadData returns the site's load data, or nil.
func (s *Session) SiteLoadData(siteID string) map[string]any {
	if st := s.site(siteID); st != nil {
		return st.LoadData
	}
	return nil
}

// StoreSubmissionData records a completed submission.
func (s *Session) StoreSubmissionData(siteID string, rec SubmissionRecord) {
	st := s.InitializeSiteData(siteID, "")
	st.SubmissionData = &rec
}

// SubmissionData returns the last submission record, or nil.
func (s *Session) SubmissionData(siteID string) *SubmissionRecord {
	if st := s.site(siteID); st != nil {
		return st.SubmissionData
	}
	return nil
}

// ClearInputData drops all page state for the site, keeping submission and
// eligibility data.
func (s *Session) ClearInputData(siteID string) {
	if st := s.site(siteID); st != nil {
		st.InputData = make(map[string]*PageState)
		st.SubmissionErrors = nil
	}
}

// ClearSiteData removes every trace of the site from the session.
func (s *Session) ClearSiteData(siteID string) {
	if s.Sites != nil {
		delete(s.Sites, siteID)
	}
}

// DataLayer returns the session's site data as plain JSON values, the shape
// page-condition expressions are evaluated against. List pages expose their
// items as formData.
func (s *Session) DataLayer() map[string]any {
	out := make(map[string]any, len(s.Sites))
	for siteID, st := range s.Sites {
		if st == nil {
			continue
		}
		inputs := make(map[string]any, len(st.InputData))
		for pageURL, p := range st.InputData {
			if p == nil {
				continue
			}
			var formData any = p.FormData
			if p.Items != nil {
				formData = p.Items
			}
			inputs[pageURL] = map[string]any{"formData": plain(formData)}
		}
		entry := map[string]any{
			"inputData": inputs,
			"loadData":  plain(st.LoadData),
		}
		if st.SubmissionData != nil {
			entry["submissionData"] = plain(st.SubmissionData)
		}
		out[siteID] = entry
	}
	return out
}

// plain round-trips v through JSON so the result only holds maps, slices,
// strings, float64, bool and nil.
func plain(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
