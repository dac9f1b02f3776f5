// Package domainerrors carries coded errors across service boundaries.
//
// Services return these (usually wrapping an underlying cause) and the transport
// layer translates the code into an HTTP status in exactly one place. The codes
// mirror the failure taxonomy of the wizard engine:
//   - CodeValidation: user-correctable input problems, never fatal
//   - CodeConfiguration: missing or malformed service/endpoint configuration
//   - CodeProtocol: an upstream API answered with a malformed shape
//   - CodeUnavailable: transport failures after the retry budget is spent
//   - CodeNotFound: unknown service/page or an index outside the item list
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine readable error classification.
type Code string

const (
	CodeValidation    Code = "validation"
	CodeConfiguration Code = "configuration"
	CodeProtocol      Code = "protocol"
	CodeUnavailable   Code = "unavailable"
	CodeNotFound      Code = "not_found"
	CodeForbidden     Code = "forbidden"
	CodeBadRequest    Code = "bad_request"
	CodeInternal      Code = "internal"
)

// Error is a coded error. Message is safe to show to operators; Err is the cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// Is is shorthand for HasCode, kept for call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the status the error-rendering collaborator should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeProtocol, CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
