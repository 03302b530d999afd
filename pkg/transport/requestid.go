package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/twinbot/pkg/api"
)

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestID returns a random UUID v4.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestID makes sure the handler sees a request ID even when the query
// did not arrive through the HTTP adapter, which normally assigns one
// from X-Request-ID.
func RequestID() Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = WithRequestID(ctx, NewRequestID())
			}
			return next.HandleQuery(ctx, req)
		})
	}
}
