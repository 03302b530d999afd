package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rhuss/twinbot/pkg/api"
	"github.com/rhuss/twinbot/pkg/observability"
	"github.com/rhuss/twinbot/pkg/transport"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware authenticates every request not on the bypass list, stores
// the identity in the request context and, when limiter is non-nil,
// enforces the caller's rate limit.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]struct{}, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Decision != Yes || res.Identity == nil {
				if res.Decision == No {
					slog.Warn("authentication failed",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"error", res.Err,
					)
				}
				unauthorized(w, res.Err)
				return
			}

			id := res.Identity
			if id.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteError(w, api.NewServerError("internal authentication error"))
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "tier", id.Tier())
					observability.RateLimitRejectedTotal.WithLabelValues(id.Tier()).Inc()
					transport.WriteError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			slog.Debug("authenticated", "subject", id.Subject, "tier", id.Tier(), "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// unauthorized writes 401, or 403 when the caller is known but lacks a
// required scope.
func unauthorized(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrForbidden) {
		transport.WriteError(w, api.NewPermissionError("access denied"))
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="twinbot"`)
	transport.WriteError(w, api.NewAuthenticationError("authentication required"))
}
