package audit

import "time"

// Action names a recorded wizard event.
type Action string

const (
	ActionSubmissionSucceeded Action = "submission_succeeded"
	ActionSubmissionFailed    Action = "submission_failed"
	ActionEligibilityDenied   Action = "eligibility_denied"
)

// Event is emitted from domain logic to capture key actions. It carries no
// form data, only identifiers.
type Event struct {
	Action          Action    `json:"action"`
	SiteID          string    `json:"site_id"`
	SessionID       string    `json:"session_id,omitempty"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	ErrorCode       int       `json:"error_code,omitempty"`
	RequestID       string    `json:"request_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
