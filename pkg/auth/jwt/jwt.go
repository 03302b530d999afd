// Package jwt authenticates bearer tokens issued by an OIDC provider.
// Tokens must be RSA-signed by a key published at the provider's JWKS
// endpoint.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/twinbot/pkg/auth"
)

// Config configures the authenticator. Only JWKSURL is required.
type Config struct {
	Issuer   string // expected iss; unchecked when empty
	Audience string // expected aud; unchecked when empty
	JWKSURL  string

	// Claims mapped onto the identity. Defaults: "sub", "tier", "scope".
	UserClaim   string
	TierClaim   string
	ScopesClaim string

	// RequiredScope rejects otherwise valid tokens that lack it with
	// auth.ErrForbidden.
	RequiredScope string

	Leeway   time.Duration
	CacheTTL time.Duration // default 1h

	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

// Authenticator validates bearer JWTs.
type Authenticator struct {
	cfg    Config
	keys   *keySet
	parser *jwtlib.Parser
}

// New creates an authenticator. Keys are fetched lazily on first use.
func New(cfg Config) *Authenticator {
	cfg = cfg.withDefaults()

	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(cfg.Leeway))
	}

	return &Authenticator{
		cfg:    cfg,
		keys:   newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL),
		parser: jwtlib.NewParser(opts...),
	}
}

// Authenticate abstains unless the request carries a Bearer token. Any
// Bearer token that fails verification is a No.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{}
	}
	if raw == "" {
		return auth.Reject(errors.New("empty bearer token"))
	}

	claims := jwtlib.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return a.keys.lookup(ctx, kid)
	})
	if err != nil {
		slog.Debug("rejecting bearer token", "error", err)
		return auth.Reject(fmt.Errorf("%w: %w", auth.ErrUnauthenticated, err))
	}

	id, err := a.identity(claims)
	if err != nil {
		return auth.Reject(err)
	}
	if a.cfg.RequiredScope != "" && !id.HasScope(a.cfg.RequiredScope) {
		slog.Debug("token lacks required scope", "subject", id.Subject, "scope", a.cfg.RequiredScope)
		return auth.Reject(fmt.Errorf("%w: missing scope %q", auth.ErrForbidden, a.cfg.RequiredScope))
	}
	return auth.Accept(id)
}

func (a *Authenticator) identity(claims jwtlib.MapClaims) (*auth.Identity, error) {
	subject, _ := claims[a.cfg.UserClaim].(string)
	if subject == "" {
		return nil, fmt.Errorf("%w: token has no %q claim", auth.ErrUnauthenticated, a.cfg.UserClaim)
	}
	tier, _ := claims[a.cfg.TierClaim].(string)

	id := &auth.Identity{
		Subject:     subject,
		ServiceTier: tier,
		Scopes:      scopes(claims[a.cfg.ScopesClaim]),
		Metadata:    map[string]string{},
	}
	if iss, _ := claims["iss"].(string); iss != "" {
		id.Metadata["issuer"] = iss
	}
	return id, nil
}

// scopes accepts the OAuth2 space-delimited form as well as a JSON array.
func scopes(v any) []string {
	var out []string
	switch v := v.(type) {
	case string:
		out = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
