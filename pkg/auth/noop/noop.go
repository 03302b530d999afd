// Package noop provides a no-op authenticator that accepts all requests.
// Used for development and as a default voter in the auth chain.
package noop

import (
	"context"
	"net"
	"net/http"

	"github.com/rhuss/twinbot/pkg/auth"
)

// Authenticator always returns Yes with an anonymous identity. The subject
// includes the client host so rate limits apply per client.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	subject := "anonymous"
	if host != "" {
		subject += "@" + host
	}
	return auth.Accept(&auth.Identity{Subject: subject, ServiceTier: "default"})
}
