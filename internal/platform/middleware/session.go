package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gov-cy/govcy-express-services-sub001/internal/session"
	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/httputil"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/sentinel"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/requestcontext"
)

type contextKeySession struct{}

// SessionFromContext returns the session loaded by Sessions, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(contextKeySession{}).(*session.Session)
	return sess
}

// WithSession attaches sess to ctx. Handler tests use it to skip the cookie round trip.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	ctx = context.WithValue(ctx, contextKeySession{}, sess)
	noteSessionID(ctx, sess.ID)
	return requestcontext.WithSessionID(ctx, sess.ID)
}

// Sessions loads the cookie's session before the handler and saves it after.
type Sessions struct {
	store  session.Store
	cookie string
	ttl    time.Duration
	secure bool
	logger *slog.Logger
	newID  func() string
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

func WithSessionTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		s.ttl = ttl
	}
}

func WithSecureCookie(secure bool) SessionsOption {
	return func(s *Sessions) {
		s.secure = secure
	}
}

func WithSessionLogger(logger *slog.Logger) SessionsOption {
	return func(s *Sessions) {
		s.logger = logger
	}
}

// WithSessionIDs overrides uuid session ids.
func WithSessionIDs(newID func() string) SessionsOption {
	return func(s *Sessions) {
		s.newID = newID
	}
}

// NewSessions creates the session middleware.
func NewSessions(store session.Store, cookieName string, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		store:  store,
		cookie: cookieName,
		secure: true,
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Middleware creates a session when the cookie is missing or stale.
// Saves are last-write-wins. A new session the handler left empty is not
// stored, so anonymous traffic does not fill the store.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, fresh, err := s.load(ctx, r)
		if err != nil {
			s.logger.ErrorContext(ctx, "session load failed", "request_id", GetRequestID(r), "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable"))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     s.cookie,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int(s.ttl.Seconds()),
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSession(ctx, sess)))

		if fresh && sess.IsEmpty() {
			return
		}
		sess.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Save(context.WithoutCancel(ctx), sess); err != nil {
			s.logger.ErrorContext(ctx, "session save failed",
				"request_id", GetRequestID(r),
				"session_id", sess.ID,
				"error", err,
			)
		}
	})
}

// load returns the cookie's session, or a new one with fresh set.
func (s *Sessions) load(ctx context.Context, r *http.Request) (sess *session.Session, fresh bool, err error) {
	if c, err := r.Cookie(s.cookie); err == nil && c.Value != "" {
		sess, err := s.store.Load(ctx, c.Value)
		switch {
		case err == nil:
			return sess, false, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, false, err
		}
	}
	return session.New(s.newID(), requestcontext.Now(ctx)), true, nil
}
