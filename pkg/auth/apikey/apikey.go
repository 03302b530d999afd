// Package apikey authenticates requests against a fixed set of API keys
// from the configuration. A key is accepted from "Authorization: Bearer"
// or, when no Authorization header is sent, from X-API-Key.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/rhuss/twinbot/pkg/auth"
)

// HeaderName is the fallback header for clients that cannot set
// Authorization.
const HeaderName = "X-API-Key"

// RawKeyEntry pairs a plaintext key with the identity it grants.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

type entry struct {
	digest   [sha256.Size]byte
	identity auth.Identity
}

// Authenticator holds only SHA-256 digests of the configured keys.
type Authenticator struct {
	entries []entry
}

func New(keys []RawKeyEntry) *Authenticator {
	a := &Authenticator{entries: make([]entry, 0, len(keys))}
	for _, k := range keys {
		a.entries = append(a.entries, entry{digest: sha256.Sum256([]byte(k.Key)), identity: k.Identity})
	}
	return a
}

// Authenticate abstains when the request carries no key. An empty or
// unknown key is a No.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key, ok := presentedKey(r)
	if !ok {
		return auth.Result{}
	}
	if key == "" {
		return auth.Reject(auth.ErrUnauthenticated)
	}

	id, found := a.lookup(sha256.Sum256([]byte(key)))
	if !found {
		return auth.Reject(auth.ErrUnauthenticated)
	}
	return auth.Accept(id)
}

// lookup scans every entry so the time taken does not depend on which
// entry matched. The returned identity is a copy.
func (a *Authenticator) lookup(digest [sha256.Size]byte) (*auth.Identity, bool) {
	match := -1
	for i := range a.entries {
		if subtle.ConstantTimeCompare(digest[:], a.entries[i].digest[:]) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return nil, false
	}
	id := a.entries[match].identity
	id.Scopes = slices.Clone(id.Scopes)
	id.Metadata = maps.Clone(id.Metadata)
	return &id, true
}

func presentedKey(r *http.Request) (string, bool) {
	if r.Header.Get("Authorization") != "" {
		return auth.BearerToken(r)
	}
	values, ok := r.Header[http.CanonicalHeaderKey(HeaderName)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}
