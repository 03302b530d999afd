package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/rhuss/twinbot/pkg/observability"
	"github.com/rhuss/twinbot/pkg/transport"
)

// ServerConfig is assembled from ServerOptions.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // must cover a full simulation run
	ShutdownTimeout time.Duration
	MetricsPath     string // "" disables /metrics
	Compress        bool
	Ready           transport.HealthChecker
	Logger          *slog.Logger

	// HTTPMiddleware runs inside the request ID and metrics layers, first
	// listed outermost.
	HTTPMiddleware []func(http.Handler) http.Handler
}

// DefaultServerConfig returns the settings used when no option overrides
// them.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":5000",
		MaxBodySize:     1 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 70 * time.Second,
		MetricsPath:     "/metrics",
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*ServerConfig)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(c *ServerConfig) { c.Addr = addr }
}

// WithMaxBodySize sets the request body limit. Values <= 0 keep the
// default.
func WithMaxBodySize(n int64) ServerOption {
	return func(c *ServerConfig) { c.MaxBodySize = n }
}

// WithReadTimeout sets the HTTP read timeout.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.ReadTimeout = d }
}

// WithWriteTimeout sets the HTTP write timeout. It must cover a full
// simulation run.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.WriteTimeout = d }
}

// WithShutdownTimeout sets how long in-flight queries may drain on
// shutdown.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.ShutdownTimeout = d }
}

// WithMetricsPath sets the metrics route. "" disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

// WithCompression gzips responses for clients that accept it.
func WithCompression(enabled bool) ServerOption {
	return func(c *ServerConfig) { c.Compress = enabled }
}

// WithReadiness sets the dependency probed by /readyz.
func WithReadiness(hc transport.HealthChecker) ServerOption {
	return func(c *ServerConfig) { c.Ready = hc }
}

// WithHTTPMiddleware appends middleware such as authentication.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(c *ServerConfig) { c.HTTPMiddleware = append(c.HTTPMiddleware, mw...) }
}

// WithLogger sets the logger for server events.
func WithLogger(l *slog.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}

// Server serves the relay over HTTP.
type Server struct {
	config     ServerConfig
	adapter    *Adapter
	httpServer *http.Server
}

// NewServer wraps handler with recovery, request ID and logging
// middleware and builds the HTTP stack. Layers, outermost first: request
// ID, metrics, HTTPMiddleware, compression, routes.
func NewServer(handler transport.QueryHandler, opts ...ServerOption) *Server {
	cfg := DefaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	adapterCfg := DefaultConfig()
	adapterCfg.MaxBodySize = cfg.MaxBodySize
	adapterCfg.MetricsPath = cfg.MetricsPath
	adapter := NewAdapter(handler, cfg.Ready, adapterCfg,
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(cfg.Logger),
	)

	var h http.Handler = adapter.mux
	if cfg.Compress {
		h = gzhttp.GzipHandler(h)
	}
	for i := len(cfg.HTTPMiddleware) - 1; i >= 0; i-- {
		h = cfg.HTTPMiddleware[i](h)
	}
	h = observability.MetricsMiddleware(adapter.Routes()...)(h)
	h = RequestIDMiddleware(h)

	return &Server{
		config:  cfg,
		adapter: adapter,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		},
	}
}

// Handler returns the complete HTTP stack.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully,
// letting in-flight queries finish within the shutdown timeout. It
// returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.config.Logger
	served := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", ln.Addr().String())
		served <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

// Shutdown stops the server directly, for callers that do not manage it
// through a context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
