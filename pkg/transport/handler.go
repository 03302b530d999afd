package transport

import (
	"context"

	"github.com/rhuss/twinbot/pkg/api"
)

// QueryHandler answers one query. Implementations return an *api.APIError
// for failures that should reach the client with a specific status; any
// other error is reported as a server error.
type QueryHandler interface {
	HandleQuery(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error)
}

// QueryHandlerFunc is an adapter that allows using an ordinary function
// as a QueryHandler.
type QueryHandlerFunc func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error)

// HandleQuery calls f(ctx, req).
func (f QueryHandlerFunc) HandleQuery(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
	return f(ctx, req)
}

// HealthChecker reports whether a dependency is ready to serve.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
