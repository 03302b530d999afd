package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
)

// Decision is one authenticator's vote on a request.
type Decision int

const (
	// Abstain means the authenticator does not recognise the credentials.
	// The chain asks the next authenticator.
	Abstain Decision = iota

	// Yes means the credentials are valid. The chain stops with this identity.
	Yes

	// No means credentials were presented but are invalid. The chain stops
	// and the request is rejected.
	No
)

func (d Decision) String() string {
	switch d {
	case Abstain:
		return "abstain"
	case Yes:
		return "yes"
	case No:
		return "no"
	}
	return "unknown"
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Result is the outcome of one authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set when Decision is Yes
	Err      error     // set when Decision is No
}

// Accept returns a Yes result for id.
func Accept(id *Identity) Result {
	return Result{Decision: Yes, Identity: id}
}

// Reject returns a No result carrying err.
func Reject(err error) Result {
	return Result{Decision: No, Err: err}
}

// Identity is an authenticated caller of the query endpoint.
type Identity struct {
	// Subject identifies the caller and must not be empty.
	Subject string

	// ServiceTier selects the caller's rate limit.
	ServiceTier string

	// Scopes are the authorization scopes granted to the caller.
	Scopes []string

	// Metadata carries authenticator-specific details such as the issuer.
	Metadata map[string]string
}

// Tier returns the service tier, or "default" when none is set.
func (id *Identity) Tier() string {
	if id == nil || id.ServiceTier == "" {
		return "default"
	}
	return id.ServiceTier
}

// HasScope reports whether scope was granted.
func (id *Identity) HasScope(scope string) bool {
	return id != nil && slices.Contains(id.Scopes, scope)
}

// Authenticator votes on the credentials carried by a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, r *http.Request) Result

// Authenticate calls f(ctx, r).
func (f AuthenticatorFunc) Authenticate(ctx context.Context, r *http.Request) Result {
	return f(ctx, r)
}

// Chain asks its authenticators in order until one votes Yes or No.
type Chain struct {
	authenticators []Authenticator
	fallback       Decision
}

// NewChain creates a chain. fallback decides requests on which every
// authenticator abstains: Yes admits them as "anonymous", anything else
// rejects them.
func NewChain(fallback Decision, authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators, fallback: fallback}
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.fallback == Yes {
		return Accept(&Identity{Subject: "anonymous", ServiceTier: "default"})
	}
	return Reject(ErrUnauthenticated)
}

// BearerToken returns the token of an "Authorization: Bearer" header.
// ok is false when the header is absent or uses another scheme; a Bearer
// header with an empty token returns ("", true).
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	rest, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
