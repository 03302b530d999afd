package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	gohttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/twinbot/pkg/api"
	"github.com/rhuss/twinbot/pkg/transport"
)

// serveLocal starts srv on a loopback port and returns its base URL and
// a function that stops it and returns Serve's result.
func serveLocal(t *testing.T, srv *Server) (string, func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after cancel")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return "http://" + ln.Addr().String(), stop
}

func TestServerAnswersQueries(t *testing.T) {
	base, stop := serveLocal(t, NewServer(&mockHandler{reply: "Pressure is nominal."}))

	resp, err := gohttp.Post(base+QueryPath, "application/json", bytes.NewReader([]byte(`{"query":"status?"}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var got api.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.StatusCode != gohttp.StatusOK || got.Reply != "Pressure is nominal." {
		t.Errorf("got %d %+v", resp.StatusCode, got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if err := stop(); err != nil {
		t.Errorf("Serve returned %v after cancel, want nil", err)
	}
}

func TestServerDrainsInFlightQueries(t *testing.T) {
	started := make(chan struct{})
	slow := transport.QueryHandlerFunc(func(ctx context.Context, _ *api.QueryRequest) (*api.QueryResponse, error) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		return &api.QueryResponse{Reply: "late", DigitalTwin: json.RawMessage(`{}`)}, nil
	})
	base, stop := serveLocal(t, NewServer(slow, WithShutdownTimeout(5*time.Second)))

	status := make(chan int, 1)
	go func() {
		resp, err := gohttp.Post(base+QueryPath, "application/json", bytes.NewReader([]byte(`{}`)))
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-started
	if err := stop(); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if got := <-status; got != gohttp.StatusOK {
		t.Errorf("in-flight query status = %d, want 200", got)
	}
}

func TestServerRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	srv := NewServer(&mockHandler{}, WithAddr(ln.Addr().String()))
	if err := srv.Run(context.Background()); err == nil {
		t.Error("Run on an occupied port returned nil")
	}
}

func TestServerHTTPMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(gohttp.Handler) gohttp.Handler {
		return func(next gohttp.Handler) gohttp.Handler {
			return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
				order = append(order, name)
				if transport.RequestIDFromContext(r.Context()) == "" {
					t.Error("request ID not assigned before HTTP middleware")
				}
				next.ServeHTTP(w, r)
			})
		}
	}

	srv := NewServer(&mockHandler{}, WithHTTPMiddleware(mw("auth")), WithHTTPMiddleware(mw("audit")))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", HealthPath, nil))

	if len(order) != 2 || order[0] != "auth" || order[1] != "audit" {
		t.Errorf("order = %v, want [auth audit]", order)
	}
}

func TestServerCompression(t *testing.T) {
	long := string(bytes.Repeat([]byte("coolant loop stable "), 200))
	srv := NewServer(&mockHandler{reply: long}, WithCompression(true))

	req := httptest.NewRequest("POST", QueryPath, bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	var got api.QueryResponse
	if err := json.Unmarshal(data, &got); err != nil || got.Reply != long {
		t.Errorf("decompressed reply mismatch (err=%v)", err)
	}
}

func TestServerOptions(t *testing.T) {
	srv := NewServer(&mockHandler{},
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithReadTimeout(3*time.Second),
		WithWriteTimeout(70*time.Second),
		WithMetricsPath("/internal/metrics"),
		WithLogger(nil),
	)

	if srv.httpServer.Addr != ":9999" || srv.adapter.config.MaxBodySize != 1024 {
		t.Errorf("addr/max body = %q/%d", srv.httpServer.Addr, srv.adapter.config.MaxBodySize)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v", srv.config.ShutdownTimeout)
	}
	if srv.httpServer.ReadTimeout != 3*time.Second || srv.httpServer.WriteTimeout != 70*time.Second {
		t.Errorf("timeouts = %v/%v, want 3s/70s", srv.httpServer.ReadTimeout, srv.httpServer.WriteTimeout)
	}
	if srv.adapter.config.MetricsPath != "/internal/metrics" {
		t.Errorf("metrics path = %q", srv.adapter.config.MetricsPath)
	}
	if srv.config.Logger == nil {
		t.Error("nil logger not replaced with default")
	}
	if got := DefaultServerConfig().Addr; got != ":5000" {
		t.Errorf("default addr = %q, want :5000", got)
	}
}
