package gateway

import (
	"encoding/json"
	"math"

	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
)

// Response is the normalized shape of every upstream API answer.
// When Succeeded is false ErrorCode is always set.
type Response struct {
	Succeeded          bool
	ErrorCode          *int
	ErrorMessage       *string
	Data               any
	InformationMessage any
	// Extra carries any additional top-level fields unchanged.
	Extra map[string]any
}

// Code returns the error code, or zero when none was sent.
func (r *Response) Code() int {
	if r == nil || r.ErrorCode == nil {
		return 0
	}
	return *r.ErrorCode
}

// Message returns the error message, or "" when none was sent.
func (r *Response) Message() string {
	if r == nil || r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

// DataMap returns Data as an object, or nil when it is not one.
func (r *Response) DataMap() map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r.Data.(map[string]any)
	return m
}

var canonicalFields = [...]struct{ pascal, camel string }{
	{"Succeeded", "succeeded"},
	{"ErrorCode", "errorCode"},
	{"ErrorMessage", "errorMessage"},
	{"Data", "data"},
	{"InformationMessage", "informationMessage"},
}

func pick(body map[string]any, pascal, camel string) (any, bool) {
	if v, ok := body[pascal]; ok {
		return v, true
	}
	v, ok := body[camel]
	return v, ok
}

// Normalize maps a decoded JSON body onto Response. Either PascalCase or
// lowerCamelCase field names are accepted, PascalCase winning when both are
// present. A non-boolean Succeeded, or a failure without a numeric ErrorCode,
// is a protocol error.
func Normalize(body map[string]any) (*Response, error) {
	if body == nil {
		return nil, dErrors.New(dErrors.CodeProtocol, "response body is not an object")
	}

	raw, _ := pick(body, "Succeeded", "succeeded")
	succeeded, ok := raw.(bool)
	if !ok {
		return nil, dErrors.New(dErrors.CodeProtocol, "response Succeeded is not a boolean")
	}
	resp := &Response{Succeeded: succeeded}

	rawCode, _ := pick(body, "ErrorCode", "errorCode")
	code, numeric := toInt(rawCode)
	switch {
	case numeric:
		resp.ErrorCode = &code
	case !succeeded:
		return nil, dErrors.New(dErrors.CodeProtocol, "failed response has no numeric ErrorCode")
	}

	if msg, ok := pick(body, "ErrorMessage", "errorMessage"); ok {
		if s, isString := msg.(string); isString {
			resp.ErrorMessage = &s
		}
	}
	resp.Data, _ = pick(body, "Data", "data")
	resp.InformationMessage, _ = pick(body, "InformationMessage", "informationMessage")

	for k, v := range body {
		if isCanonical(k) {
			continue
		}
		if resp.Extra == nil {
			resp.Extra = make(map[string]any)
		}
		resp.Extra[k] = v
	}
	return resp, nil
}

func isCanonical(key string) bool {
	for _, f := range canonicalFields {
		if key == f.pascal || key == f.camel {
			return true
		}
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// MarshalJSON writes the PascalCase form plus passthrough fields.
func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["Succeeded"] = r.Succeeded
	out["ErrorCode"] = r.ErrorCode
	out["ErrorMessage"] = r.ErrorMessage
	out["Data"] = r.Data
	out["InformationMessage"] = r.InformationMessage
	return json.Marshal(out)
}

// UnmarshalJSON accepts any shape Normalize accepts.
func (r *Response) UnmarshalJSON(data []byte) error {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	n, err := Normalize(body)
	if err != nil {
		return err
	}
	*r = *n
	return nil
}
