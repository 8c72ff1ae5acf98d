// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and publishers read them without
// importing net/http:
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	origin := requestcontext.Origin(ctx)
package requestcontext

import (
	"context"
	"time"

	"profilereg/pkg/platform/origin"
)

type (
	originKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyOrigin      = originKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Origin returns the caller origin set by the auth middleware. Requests that
// passed no credentials carry origin.None().
func Origin(ctx context.Context) origin.Origin {
	if o, ok := ctx.Value(ContextKeyOrigin).(origin.Origin); ok {
		return o
	}
	return origin.None()
}

// WithOrigin injects the caller origin into the context.
func WithOrigin(ctx context.Context, o origin.Origin) context.Context {
	return context.WithValue(ctx, ContextKeyOrigin, o)
}

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

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP callers such as workers and tests.
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
