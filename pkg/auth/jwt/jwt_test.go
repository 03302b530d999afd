package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/rhuss/twinbot/pkg/auth"
)

const (
	issuer   = "https://idp.plant.example"
	audience = "twinbot"
)

var (
	keyOnce sync.Once
	keyA    *rsa.PrivateKey
	keyB    *rsa.PrivateKey
)

func signingKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		if keyA, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if keyB, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return keyA, keyB
}

// idp serves a JWKS document with the keys currently published.
type idp struct {
	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetches atomic.Int32
}

func (p *idp) publish(kid string, key *rsa.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keys == nil {
		p.keys = map[string]*rsa.PublicKey{}
	}
	p.keys[kid] = key
}

func (p *idp) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	p.fetches.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	for kid, k := range p.keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func newAuthenticator(t *testing.T, mutate func(*Config)) (*Authenticator, *idp) {
	t.Helper()
	a, _ := signingKeys(t)
	p := &idp{}
	p.publish("k1", &a.PublicKey)
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	cfg := Config{Issuer: issuer, Audience: audience, JWKSURL: srv.URL}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg), p
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims jwtlib.MapClaims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func claims(extra jwtlib.MapClaims) jwtlib.MapClaims {
	c := jwtlib.MapClaims{
		"sub": "operator-7",
		"iss": issuer,
		"aud": audience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return c
}

func request(header string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return r
}

func TestAuthenticateDecision(t *testing.T) {
	a, b := signingKeys(t)
	authn, _ := newAuthenticator(t, nil)

	tests := []struct {
		name   string
		header string
		want   auth.Decision
	}{
		{"no header", "", auth.Abstain},
		{"basic scheme", "Basic b3A6c2VjcmV0", auth.Abstain},
		{"empty bearer", "Bearer ", auth.No},
		{"garbage", "Bearer not-a-jwt", auth.No},
		{"valid", "Bearer " + sign(t, a, "k1", claims(nil)), auth.Yes},
		{"expired", "Bearer " + sign(t, a, "k1", claims(jwtlib.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})), auth.No},
		{"wrong issuer", "Bearer " + sign(t, a, "k1", claims(jwtlib.MapClaims{"iss": "https://elsewhere.example"})), auth.No},
		{"wrong audience", "Bearer " + sign(t, a, "k1", claims(jwtlib.MapClaims{"aud": "dashboard"})), auth.No},
		{"missing subject", "Bearer " + sign(t, a, "k1", claims(jwtlib.MapClaims{"sub": nil})), auth.No},
		{"missing kid", "Bearer " + sign(t, a, "", claims(nil)), auth.No},
		{"unknown kid", "Bearer " + sign(t, a, "k9", claims(nil)), auth.No},
		{"wrong key", "Bearer " + sign(t, b, "k1", claims(nil)), auth.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := authn.Authenticate(context.Background(), request(tt.header))
			if res.Decision != tt.want {
				t.Fatalf("Decision = %v, want %v (err=%v)", res.Decision, tt.want, res.Err)
			}
			if tt.want == auth.No && !errors.Is(res.Err, auth.ErrUnauthenticated) && tt.name != "empty bearer" {
				t.Errorf("err = %v, want ErrUnauthenticated", res.Err)
			}
		})
	}
}

func TestIdentityFromClaims(t *testing.T) {
	a, _ := signingKeys(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		extra  jwtlib.MapClaims
		want   auth.Identity
	}{
		{
			name:  "default claims with scope string",
			extra: jwtlib.MapClaims{"tier": "premium", "scope": "twin:query twin:admin"},
			want: auth.Identity{
				Subject:     "operator-7",
				ServiceTier: "premium",
				Scopes:      []string{"twin:query", "twin:admin"},
				Metadata:    map[string]string{"issuer": issuer},
			},
		},
		{
			name:  "scope array",
			extra: jwtlib.MapClaims{"scope": []any{"twin:query", 42, ""}},
			want: auth.Identity{
				Subject:  "operator-7",
				Scopes:   []string{"twin:query"},
				Metadata: map[string]string{"issuer": issuer},
			},
		},
		{
			name: "custom claim names",
			mutate: func(c *Config) {
				c.UserClaim = "email"
				c.TierClaim = "plan"
				c.ScopesClaim = "permissions"
			},
			extra: jwtlib.MapClaims{"email": "ops@plant.example", "plan": "batch", "permissions": "read"},
			want: auth.Identity{
				Subject:     "ops@plant.example",
				ServiceTier: "batch",
				Scopes:      []string{"read"},
				Metadata:    map[string]string{"issuer": issuer},
			},
		},
		{
			name:   "issuer and audience unchecked when unset",
			mutate: func(c *Config) { c.Issuer, c.Audience = "", "" },
			extra:  jwtlib.MapClaims{"iss": "https://other.example", "aud": "other"},
			want: auth.Identity{
				Subject:  "operator-7",
				Metadata: map[string]string{"issuer": "https://other.example"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn, _ := newAuthenticator(t, tt.mutate)
			res := authn.Authenticate(context.Background(), request("Bearer "+sign(t, a, "k1", claims(tt.extra))))
			if res.Decision != auth.Yes {
				t.Fatalf("Decision = %v, want yes (err=%v)", res.Decision, res.Err)
			}
			if diff := cmp.Diff(tt.want, *res.Identity); diff != "" {
				t.Errorf("identity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequiredScope(t *testing.T) {
	a, _ := signingKeys(t)
	authn, _ := newAuthenticator(t, func(c *Config) { c.RequiredScope = "twin:query" })

	tests := []struct {
		scope any
		want  auth.Decision
	}{
		{"read twin:query", auth.Yes},
		{"read write", auth.No},
		{nil, auth.No},
	}
	for _, tt := range tests {
		res := authn.Authenticate(context.Background(), request("Bearer "+sign(t, a, "k1", claims(jwtlib.MapClaims{"scope": tt.scope}))))
		if res.Decision != tt.want {
			t.Errorf("scope %v: Decision = %v, want %v (err=%v)", tt.scope, res.Decision, tt.want, res.Err)
		}
		if tt.want == auth.No && !errors.Is(res.Err, auth.ErrForbidden) {
			t.Errorf("scope %v: err = %v, want ErrForbidden", tt.scope, res.Err)
		}
	}
}

func TestLeeway(t *testing.T) {
	a, _ := signingKeys(t)
	tok := sign(t, a, "k1", claims(jwtlib.MapClaims{"exp": time.Now().Add(-10 * time.Second).Unix()}))

	strict, _ := newAuthenticator(t, nil)
	if res := strict.Authenticate(context.Background(), request("Bearer "+tok)); res.Decision != auth.No {
		t.Errorf("without leeway: Decision = %v, want no", res.Decision)
	}
	lenient, _ := newAuthenticator(t, func(c *Config) { c.Leeway = time.Minute })
	if res := lenient.Authenticate(context.Background(), request("Bearer "+tok)); res.Decision != auth.Yes {
		t.Errorf("with leeway: Decision = %v, want yes (err=%v)", res.Decision, res.Err)
	}
}

func TestKeySetCachesAndFollowsRotation(t *testing.T) {
	a, b := signingKeys(t)
	authn, p := newAuthenticator(t, nil)
	valid := "Bearer " + sign(t, a, "k1", claims(nil))

	for range 5 {
		if res := authn.Authenticate(context.Background(), request(valid)); res.Decision != auth.Yes {
			t.Fatalf("Decision = %v, want yes (err=%v)", res.Decision, res.Err)
		}
	}
	if got := p.fetches.Load(); got != 1 {
		t.Fatalf("JWKS fetches = %d, want 1", got)
	}

	// A token signed with a newly published key forces one refresh.
	p.publish("k2", &b.PublicKey)
	rotated := "Bearer " + sign(t, b, "k2", claims(nil))
	if res := authn.Authenticate(context.Background(), request(rotated)); res.Decision != auth.Yes {
		t.Fatalf("rotated key: Decision = %v, want yes (err=%v)", res.Decision, res.Err)
	}
	if got := p.fetches.Load(); got != 2 {
		t.Errorf("JWKS fetches after rotation = %d, want 2", got)
	}
}

func TestKeySetExpiry(t *testing.T) {
	a, _ := signingKeys(t)
	authn, p := newAuthenticator(t, func(c *Config) { c.CacheTTL = time.Minute })
	now := time.Now()
	authn.keys.now = func() time.Time { return now }
	tok := "Bearer " + sign(t, a, "k1", claims(nil))

	authn.Authenticate(context.Background(), request(tok))
	now = now.Add(2 * time.Minute)
	if res := authn.Authenticate(context.Background(), request(tok)); res.Decision != auth.Yes {
		t.Fatalf("Decision = %v, want yes (err=%v)", res.Decision, res.Err)
	}
	if got := p.fetches.Load(); got != 2 {
		t.Errorf("JWKS fetches = %d, want 2 after TTL", got)
	}
}

func TestKeySetUnavailable(t *testing.T) {
	a, _ := signingKeys(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	authn := New(Config{JWKSURL: srv.URL})
	res := authn.Authenticate(context.Background(), request("Bearer "+sign(t, a, "k1", claims(nil))))
	if res.Decision != auth.No {
		t.Fatalf("Decision = %v, want no", res.Decision)
	}
}
