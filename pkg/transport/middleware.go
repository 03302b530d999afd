package transport

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/rhuss/twinbot/pkg/api"
)

// Middleware decorates a QueryHandler.
type Middleware func(QueryHandler) QueryHandler

// Chain composes middlewares so that the first one listed runs outermost:
// Chain(a, b)(h) is a(b(h)).
func Chain(middlewares ...Middleware) Middleware {
	return func(h QueryHandler) QueryHandler {
		for _, mw := range slices.Backward(middlewares) {
			h = mw(h)
		}
		return h
	}
}

// Recovery turns a panicking handler into a server error. The panic value
// and stack are logged, not returned to the client.
func Recovery() Middleware {
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (resp *api.QueryResponse, err error) {
			defer func() {
				if p := recover(); p != nil {
					slog.ErrorContext(ctx, "query handler panicked",
						"request_id", RequestIDFromContext(ctx),
						"panic", p,
						"stack", string(debug.Stack()),
					)
					resp, err = nil, api.NewServerError("internal server error")
				}
			}()
			return next.HandleQuery(ctx, req)
		})
	}
}

// Logging logs one line per query. The query text itself is left to the
// "transport" debug category. Server errors log at ERROR; errors the
// client or the simulation caused log at WARN.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
			start := time.Now()
			resp, err := next.HandleQuery(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Int("query_len", len(req.Query)),
				slog.Duration("duration", time.Since(start)),
			}
			if err == nil {
				logger.LogAttrs(ctx, slog.LevelInfo, "query answered", attrs...)
				return resp, nil
			}

			apiErr := AsAPIError(err)
			status := apiErr.Type.HTTPStatus()
			attrs = append(attrs, slog.Int("status", status), slog.String("error", err.Error()))
			level := slog.LevelWarn
			if status == http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(ctx, level, "query failed", attrs...)
			return resp, err
		})
	}
}
