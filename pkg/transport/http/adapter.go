package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/twinbot/pkg/api"
	"github.com/rhuss/twinbot/pkg/debug"
	"github.com/rhuss/twinbot/pkg/transport"
)

// Query routes. /query is the historical path; /v1/query is an alias.
const (
	QueryPath   = "/query"
	QueryPathV1 = "/v1/query"
	HealthPath  = "/healthz"
	ReadyPath   = "/readyz"
)

// Adapter serves the query API over HTTP.
// It routes requests to the QueryHandler and serializes responses.
type Adapter struct {
	handler transport.QueryHandler
	ready   transport.HealthChecker // nil means always ready
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// ReadyTimeout bounds the readiness check.
	ReadyTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:  1 << 20, // 1 MB
		MetricsPath:  "/metrics",
		ReadyTimeout: 2 * time.Second,
	}
}

// NewAdapter creates an HTTP adapter for the given QueryHandler.
// ready is optional; when set, /readyz reports its HealthCheck result.
// Middleware is applied to the handler in the given order.
func NewAdapter(handler transport.QueryHandler, ready transport.HealthChecker, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultConfig().ReadyTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		handler: handler,
		ready:   ready,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST "+QueryPath, a.handleQuery)
	a.mux.HandleFunc("POST "+QueryPathV1, a.handleQuery)
	a.mux.HandleFunc("GET "+HealthPath, a.handleHealth)
	a.mux.HandleFunc("GET "+ReadyPath, a.handleReady)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	return a
}

// Routes lists the paths served by the adapter.
func (a *Adapter) Routes() []string {
	routes := []string{QueryPath, QueryPathV1, HealthPath, ReadyPath}
	if a.config.MetricsPath != "" {
		routes = append(routes, a.config.MetricsPath)
	}
	return routes
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return RequestIDMiddleware(a.mux)
}

// RequestIDMiddleware makes sure every request carries an ID. A client
// supplied X-Request-ID is kept; otherwise a new one is generated. The ID
// is stored in the request context and echoed in the response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.RequestIDFromContext(r.Context())
		}
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.WithRequestID(r.Context(), id)))
	})
}

// handleQuery handles POST /query and POST /v1/query.
func (a *Adapter) handleQuery(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorStatus(w, http.StatusUnsupportedMediaType,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"))
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	// An empty body is treated like {}.
	var req api.QueryRequest
	if err := decodeQuery(r.Body, &req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorStatus(w, http.StatusRequestEntityTooLarge,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)))
			return
		}
		transport.WriteError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	debug.Log("transport", "query received",
		"request_id", transport.RequestIDFromContext(r.Context()),
		"query", debug.Truncate(req.Query, 200),
	)

	resp, err := a.handler.HandleQuery(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeQuery reads exactly one JSON value from body. Anything but
// whitespace after it is an error.
func decodeQuery(body io.Reader, req *api.QueryRequest) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errors.New("unexpected data after the request object")
	}
	return nil
}

// handleHealth handles GET /healthz. It reports liveness only.
func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleReady handles GET /readyz.
func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), a.config.ReadyTimeout)
		defer cancel()
		if err := a.ready.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			transport.WriteError(w, api.NewUnavailableError("not ready: "+err.Error()))
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}
