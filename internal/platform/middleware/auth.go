package middleware

import (
	"log/slog"
	"net/http"
)

// RequireUser rejects requests whose session has no signed-in user. Sign-in
// itself happens elsewhere and writes the user into the shared session store.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sess := SessionFromContext(ctx); sess != nil && sess.GetUser() != nil {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(ctx, "unauthorized access - no signed-in user",
				"request_id", GetRequestID(r),
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"Sign in to continue"}`)); err != nil {
				logger.ErrorContext(ctx, "failed to write unauthorized response",
					"request_id", GetRequestID(r),
					"error", err,
				)
			}
		})
	}
}
