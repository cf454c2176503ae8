// Package context carries the per-request correlation ID. The ID enters
// at the HTTP edge, rides every outbound authority and platform call,
// and is stamped on each transmission log row.
package context

import "context"

type correlationKey struct{}

// WithCorrelationID returns a context carrying the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the correlation ID, or "" when none is set.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
