// Package httputil writes JSON bodies and the one error envelope every
// handler shares.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and writes {"error", "error_description"}.
// Server-side failures omit the description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	body := map[string]string{"error": publicCode(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, status, body)
}

func publicCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeConfiguration:
		return "internal_error"
	case dErrors.CodeProtocol, dErrors.CodeUnavailable:
		return "upstream_unavailable"
	default:
		return string(code)
	}
}
