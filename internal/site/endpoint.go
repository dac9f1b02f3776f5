package site

import (
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
)

// Endpoint describes an upstream API. URL and the credential fields hold the
// NAMES of environment variables, never the secrets themselves.
type Endpoint struct {
	URL                   string            `json:"url" yaml:"url"`
	Method                string            `json:"method,omitempty" yaml:"method"`
	ClientKey             string            `json:"clientKey,omitempty" yaml:"clientKey"`
	ServiceID             string            `json:"serviceId,omitempty" yaml:"serviceId"`
	DsfGtwAPIKey          string            `json:"dsfgtwApiKey,omitempty" yaml:"dsfgtwApiKey"`
	Params                map[string]string `json:"params,omitempty" yaml:"params"`
	CashingTimeoutMinutes int               `json:"cashingTimeoutMinutes,omitempty" yaml:"cashingTimeoutMinutes"`
	Response              EndpointResponse  `json:"response,omitempty" yaml:"response"`
}

// EndpointResponse maps upstream error codes to the page users are sent to.
type EndpointResponse struct {
	ErrorResponse map[string]ErrorPage `json:"errorResponse,omitempty" yaml:"errorResponse"`
}

// ErrorPage is the redirect target for one error code.
type ErrorPage struct {
	Page string `json:"page" yaml:"page"`
}

// Resolved is an Endpoint after environment lookup.
type Resolved struct {
	URL          string
	Method       string
	ClientKey    string
	ServiceID    string
	DsfGtwAPIKey string
	Params       map[string]string
	CacheTTL     time.Duration
	ErrorPages   map[int]string
}

// Lookup reads one environment variable.
type Lookup func(name string) (string, bool)

// EnvLookup reads from the process environment.
func EnvLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Resolve substitutes environment values for the configured variable names.
// A missing URL variable is a configuration error; missing credentials resolve empty.
func (e Endpoint) Resolve(lookup Lookup) (Resolved, error) {
	if lookup == nil {
		lookup = EnvLookup
	}
	if strings.TrimSpace(e.URL) == "" {
		return Resolved{}, dErrors.New(dErrors.CodeConfiguration, "endpoint url variable is not configured")
	}
	url, ok := lookup(e.URL)
	if !ok || strings.TrimSpace(url) == "" {
		return Resolved{}, dErrors.Newf(dErrors.CodeConfiguration, "environment variable %s is not set", e.URL)
	}

	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if method == "" {
		method = "POST"
	}

	r := Resolved{
		URL:          url,
		Method:       method,
		ClientKey:    lookupOptional(lookup, e.ClientKey),
		ServiceID:    lookupOptional(lookup, e.ServiceID),
		DsfGtwAPIKey: lookupOptional(lookup, e.DsfGtwAPIKey),
		Params:       e.Params,
		CacheTTL:     time.Duration(e.CashingTimeoutMinutes) * time.Minute,
		ErrorPages:   make(map[int]string, len(e.Response.ErrorResponse)),
	}
	for code, page := range e.Response.ErrorResponse {
		n, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil || page.Page == "" {
			continue
		}
		r.ErrorPages[n] = page.Page
	}
	return r, nil
}

func lookupOptional(lookup Lookup, name string) string {
	if name == "" {
		return ""
	}
	v, _ := lookup(name)
	return v
}
