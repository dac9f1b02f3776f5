package gateway

//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks TokenHolder,Requester

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gov-cy/govcy-express-services-sub001/internal/site"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
)

type tokenUser string

func (t tokenUser) BearerToken() string { return string(t) }

func newTestClient(opts ...Option) *Client {
	return New(append([]Option{WithRetryDelay(0), WithAttemptTimeout(2 * time.Second)}, opts...)...)
}

func countingServer(t *testing.T, handler func(n int32, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		handler(n, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNormalizeAcceptsBothCasings(t *testing.T) {
	camel, err := Normalize(map[string]any{"succeeded": true, "data": map[string]any{"x": 1.0}})
	require.NoError(t, err)
	pascal, err := Normalize(map[string]any{"Succeeded": true, "Data": map[string]any{"x": 1.0}})
	require.NoError(t, err)

	if diff := cmp.Diff(pascal, camel); diff != "" {
		t.Fatalf("normalized shapes differ (-pascal +camel):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("pascal wins when both present", func(t *testing.T) {
		r, err := Normalize(map[string]any{"Succeeded": true, "succeeded": false, "Data": "p", "data": "c"})
		require.NoError(t, err)
		assert.True(t, r.Succeeded)
		assert.Equal(t, "p", r.Data)
	})

	t.Run("passthrough fields are kept", func(t *testing.T) {
		r, err := Normalize(map[string]any{"succeeded": true, "referenceValue": "ABC", "informationMessage": "hi"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"referenceValue": "ABC"}, r.Extra)
		assert.Equal(t, "hi", r.InformationMessage)
	})

	t.Run("non boolean succeeded is a protocol error", func(t *testing.T) {
		_, err := Normalize(map[string]any{"succeeded": "true"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProtocol))
	})

	t.Run("failure without numeric code is a protocol error", func(t *testing.T) {
		_, err := Normalize(map[string]any{"succeeded": false, "errorCode": "102"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProtocol))
		_, err = Normalize(map[string]any{"succeeded": false})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProtocol))
	})

	t.Run("json round trip", func(t *testing.T) {
		code := 7
		msg := "nope"
		in := Response{Succeeded: false, ErrorCode: &code, ErrorMessage: &msg, Extra: map[string]any{"trace": "t1"}}
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		var out Response
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, 7, out.Code())
		assert.Equal(t, "nope", out.Message())
		assert.Equal(t, "t1", out.Extra["trace"])
	})
}

func TestDoFailureResponseIsReturned(t *testing.T) {
	srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"succeeded":false,"errorCode":102,"errorMessage":"not eligible"}`)
	})

	resp, err := newTestClient().Do(context.Background(), Request{Method: "POST", URL: srv.URL, MaxAttempts: 3})
	require.NoError(t, err)
	assert.False(t, resp.Succeeded)
	assert.Equal(t, 102, resp.Code())
	assert.Equal(t, "not eligible", resp.Message())
	assert.Equal(t, int32(1), hits.Load())
}

func TestDoRetriesExactlyMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{1, 3, 5} {
		srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"ErrorMessage":"backend down"}`)
		})

		_, err := newTestClient().Do(context.Background(), Request{URL: srv.URL, MaxAttempts: maxAttempts})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.Contains(t, err.Error(), "backend down")
		assert.Equal(t, int32(maxAttempts), hits.Load())
	}
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	srv, hits := countingServer(t, func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"Succeeded":true,"Data":{"referenceValue":"REF-1"}}`)
	})

	resp, err := newTestClient().Do(context.Background(), Request{URL: srv.URL, MaxAttempts: 3})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded)
	assert.Equal(t, "REF-1", resp.DataMap()["referenceValue"])
	assert.Equal(t, int32(3), hits.Load())
}

func TestDoDoesNotRetryProtocolErrors(t *testing.T) {
	for name, body := range map[string]string{
		"non boolean":  `{"Succeeded":"yes"}`,
		"not json":     `<html>oops</html>`,
		"missing code": `{"succeeded":false}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			_, err := newTestClient().Do(context.Background(), Request{URL: srv.URL, MaxAttempts: 4})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeProtocol))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestDoSendsHeadersAndBody(t *testing.T) {
	var got *http.Request
	var gotBody map[string]any
	srv, _ := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"succeeded":true}`)
	})

	headers := EndpointHeaders(site.Resolved{ClientKey: "ck", ServiceID: "sid", DsfGtwAPIKey: "gw"})
	_, err := newTestClient().Do(context.Background(), Request{
		Method:         "post",
		URL:            srv.URL,
		Body:           map[string]any{"a": "b"},
		UseAccessToken: true,
		User:           tokenUser("tok"),
		Headers:        headers,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "ck", got.Header.Get("client-key"))
	assert.Equal(t, "sid", got.Header.Get("service-id"))
	assert.Equal(t, "gw", got.Header.Get("dsfgtw-api-key"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, map[string]any{"a": "b"}, gotBody)
}

func TestDoOmitsBearerWithoutToken(t *testing.T) {
	for name, req := range map[string]Request{
		"token not requested": {UseAccessToken: false, User: tokenUser("tok")},
		"empty token":         {UseAccessToken: true, User: tokenUser("")},
		"no user":             {UseAccessToken: true},
	} {
		t.Run(name, func(t *testing.T) {
			var auth string
			srv, _ := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
				_, _ = io.WriteString(w, `{"succeeded":true}`)
			})
			req.URL = srv.URL
			_, err := newTestClient().Do(context.Background(), req)
			require.NoError(t, err)
			assert.Empty(t, auth)
		})
	}
}

func TestDoSelfSignedCertificates(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"succeeded":true}`)
	}))
	defer srv.Close()

	client := newTestClient()

	_, err := client.Do(context.Background(), Request{URL: srv.URL, MaxAttempts: 1})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable), "verifying transport must reject self-signed certificates")

	resp, err := client.Do(context.Background(), Request{URL: srv.URL, MaxAttempts: 1, AllowSelfSigned: true})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded)
}

func TestDoAttemptTimeout(t *testing.T) {
	srv, hits := countingServer(t, func(_ int32, w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		_, _ = io.WriteString(w, `{"succeeded":true}`)
	})

	client := New(WithRetryDelay(0), WithAttemptTimeout(50*time.Millisecond))
	_, err := client.Do(context.Background(), Request{URL: srv.URL, MaxAttempts: 2})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, int32(2), hits.Load())
}
