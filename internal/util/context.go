package util

import (
	"context"
	"time"
)

// Context keys.
type ctxKey string

const (
	ctxKeyStartTime   ctxKey = "start_time"
	ctxKeyRoute       ctxKey = "route"
	ctxKeyDestination ctxKey = "destination"
)

// ContextWithStartTime adds a start time to the context.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyStartTime, t)
}

// StartTimeFromContext extracts the start time from context.
func StartTimeFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ctxKeyStartTime).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// ContextWithRoute adds the matched route prefix to the context.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute, route)
}

// RouteFromContext extracts the matched route prefix from context.
func RouteFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRoute).(string); ok {
		return v
	}
	return ""
}

// ContextWithDestination records which destination a forwarded request
// targets, so response and failure hooks can find its credential record.
func ContextWithDestination(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyDestination, name)
}

// DestinationFromContext extracts the destination name from context.
func DestinationFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyDestination).(string)
	return v, ok && v != ""
}

// ElapsedTime returns the elapsed time since the start time in context.
func ElapsedTime(ctx context.Context) time.Duration {
	startTime := StartTimeFromContext(ctx)
	if startTime.IsZero() {
		return 0
	}
	return time.Since(startTime)
}
