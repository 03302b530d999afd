// Package transport connects clients to the query relay.
//
// A QueryHandler takes one api.QueryRequest and returns the
// {reply, digitalTwin} response. Handlers report client-visible failures
// as *api.APIError; the error type decides the HTTP status. Middleware
// wraps a handler with panic recovery, request IDs and per-query logging.
// The HTTP binding lives in the http subpackage.
package transport
