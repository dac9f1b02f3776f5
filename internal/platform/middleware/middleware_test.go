package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/sentinel"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/requestcontext"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	t.Run("generated when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	})

	t.Run("inbound id reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "req-1", seen)
	})

	t.Run("oversized id replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

func TestRequestTimeAndRedirectCounter(t *testing.T) {
	h := RequestTime(RedirectCounter(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		first := requestcontext.Now(ctx)
		time.Sleep(time.Millisecond)
		assert.Equal(t, first, requestcontext.Now(ctx))
		assert.Equal(t, 1, requestcontext.IncrementRedirectDepth(ctx))
		assert.Equal(t, 1, requestcontext.RedirectDepth(ctx))
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/svc/index", nil)
	req.Header.Set(HeaderRequestID, "req-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "/svc/index", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, "req-9", line["request_id"])
}

func TestLogger_SessionIDFromInnerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	sessions := NewSessions(session.NewInMemory(), "sid",
		WithSessionLogger(discard()),
		WithSessionIDs(func() string { return "sess-7" }),
	)
	h := Logger(log)(sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/svc/index", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sess-7", line["session_id"])
}

func TestLatency_NilMetrics(t *testing.T) {
	h := Latency(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type failingStore struct{ session.Store }

func (failingStore) Load(context.Context, string) (*session.Session, error) {
	return nil, errors.New("redis down")
}

func TestSessions(t *testing.T) {
	store := session.NewInMemory()
	ids := 0
	mw := NewSessions(store, "sid",
		WithSessionTTL(time.Hour),
		WithSessionLogger(discard()),
		WithSessionIDs(func() string {
			ids++
			return "sess-" + string(rune('0'+ids))
		}),
	)
	h := mw.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		require.NotNil(t, sess)
		assert.Equal(t, sess.ID, requestcontext.SessionID(r.Context()))
		n, _ := sess.PageData("svc", "index")["visits"].(float64)
		sess.StorePageData("svc", "index", map[string]any{"visits": n + 1})
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, "sess-1", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	t.Run("cookie session is reloaded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "sess-1"})
		h.ServeHTTP(httptest.NewRecorder(), req)

		sess, err := store.Load(context.Background(), "sess-1")
		require.NoError(t, err)
		assert.Equal(t, float64(2), sess.PageData("svc", "index")["visits"])
	})

	t.Run("unknown cookie starts a new session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "expired"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "sess-2", w.Result().Cookies()[0].Value)
	})

	t.Run("untouched new session is not stored", func(t *testing.T) {
		idle := NewSessions(store, "sid",
			WithSessionLogger(discard()),
			WithSessionIDs(func() string { return "idle" }),
		)
		w := httptest.NewRecorder()
		idle.Middleware(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		_, err := store.Load(context.Background(), "idle")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("store failure is a bad gateway", func(t *testing.T) {
		broken := NewSessions(failingStore{}, "sid", WithSessionLogger(discard()))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "sess-1"})
		w := httptest.NewRecorder()
		broken.Middleware(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestRequireUser(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RequireUser(discard())(ok)

	t.Run("anonymous session rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/svc/index", nil)
		req = req.WithContext(WithSession(req.Context(), session.New("s", time.Now())))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthorized")
	})

	t.Run("signed-in session passes", func(t *testing.T) {
		sess := session.New("s", time.Now())
		sess.User = &session.User{Sub: "u1"}
		req := httptest.NewRequest(http.MethodGet, "/svc/index", nil)
		req = req.WithContext(WithSession(req.Context(), sess))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
