// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. Keeping it free of net/http
// lets the wizard services depend on it without pulling in transport code.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	depth := requestcontext.RedirectDepth(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//	ctx = requestcontext.WithRedirectCounter(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	sessionIDKey       struct{}
	requestIDKey       struct{}
	requestTimeKey     struct{}
	redirectCounterKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeySessionID       = sessionIDKey{}
	ContextKeyRequestID       = requestIDKey{}
	ContextKeyRequestTime     = requestTimeKey{}
	ContextKeyRedirectCounter = redirectCounterKey{}
)

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// SessionID retrieves the opaque browser session identifier from the context.
func SessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(ContextKeySessionID).(string); ok {
		return sessionID
	}
	return ""
}

// WithSessionID injects a session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// -----------------------------------------------------------------------------
// Redirect depth
// -----------------------------------------------------------------------------

// RedirectCounter counts redirect outcomes produced while serving one request.
// A request flow is single threaded, so the counter is not synchronised.
type RedirectCounter struct {
	n int
}

// WithRedirectCounter attaches a fresh redirect counter to the context.
func WithRedirectCounter(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyRedirectCounter, &RedirectCounter{})
}

// RedirectDepth returns the number of redirects recorded for this request.
// Contexts without a counter report zero.
func RedirectDepth(ctx context.Context) int {
	if c, ok := ctx.Value(ContextKeyRedirectCounter).(*RedirectCounter); ok {
		return c.n
	}
	return 0
}

// IncrementRedirectDepth records one redirect and returns the new depth.
// Contexts without a counter always report one.
func IncrementRedirectDepth(ctx context.Context) int {
	if c, ok := ctx.Value(ContextKeyRedirectCounter).(*RedirectCounter); ok {
		c.n++
		return c.n
	}
	return 1
}
