package session

import (
	"time"

	"github.com/gov-cy/govcy-express-services-sub001/internal/gateway"
	"github.com/gov-cy/govcy-express-services-sub001/internal/validation"
)

// Session is everything the wizard keeps for one browser session.
type Session struct {
	ID        string                `json:"id"`
	User      *User                 `json:"user,omitempty"`
	Sites     map[string]*SiteState `json:"siteData"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// New returns an empty session.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Sites:     make(map[string]*SiteState),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEmpty reports whether the session holds neither a user nor site data.
func (s *Session) IsEmpty() bool {
	return s.User == nil && len(s.Sites) == 0
}

// User is the signed-in citizen as reported by the identity provider.
type User struct {
	Sub         string `json:"sub"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	ProfileType string `json:"profile_type,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	IDToken     string `json:"id_token,omitempty"`
}

// BearerToken returns the access token sent to upstream APIs.
func (u *User) BearerToken() string {
	if u == nil {
		return ""
	}
	return u.AccessToken
}

// SiteState is the per-service slice of a session.
type SiteState struct {
	InputData          map[string]*PageState `json:"inputData"`
	EligibilityResults map[string]CacheEntry `json:"eligibilityResults"`
	SubmissionData     *SubmissionRecord     `json:"submissionData,omitempty"`
	LoadData           map[string]any        `json:"loadData"`
	SubmissionErrors   *ErrorBundle          `json:"submissionErrors,omitempty"`
}

func newSiteState() *SiteState {
	return &SiteState{
		InputData:          make(map[string]*PageState),
		EligibilityResults: make(map[string]CacheEntry),
		LoadData:           make(map[string]any),
	}
}

// PageState holds one page's working data. Single-instance pages use
// FormData; multipleThings pages use Items plus at most one MultipleDraft.
type PageState struct {
	FormData         map[string]any          `json:"formData,omitempty"`
	Items            []map[string]any        `json:"items,omitempty"`
	MultipleDraft    map[string]any          `json:"multipleDraft,omitempty"`
	ValidationErrors map[string]*ErrorBundle `json:"validationErrors,omitempty"`
}

// Validation error context keys for multipleThings flows. Edit flows use the item index.
const (
	ContextPage = "page"
	ContextHub  = "hub"
	ContextAdd  = "add"
)

// ErrorBundle is a set of validation errors plus the rejected input.
type ErrorBundle struct {
	Errors       validation.Errors       `json:"errors"`
	FormData     map[string]any          `json:"formData,omitempty"`
	ErrorSummary []validation.FieldError `json:"errorSummary"`
}

// NewErrorBundle builds a bundle with the summary in page order.
func NewErrorBundle(errs validation.Errors, formData map[string]any) *ErrorBundle {
	return &ErrorBundle{
		Errors:       errs,
		FormData:     formData,
		ErrorSummary: errs.Summary(),
	}
}

// CacheEntry is a stored eligibility response.
type CacheEntry struct {
	Response  gateway.Response `json:"response"`
	Timestamp time.Time        `json:"timestamp"`
}

// SubmissionRecord is kept after a successful submission.
type SubmissionRecord struct {
	ReferenceNumber string         `json:"referenceNumber"`
	SubmittedAt     time.Time      `json:"submittedAt"`
	SubmissionData  map[string]any `json:"submissionData"`
	Response        any            `json:"response,omitempty"`
}
