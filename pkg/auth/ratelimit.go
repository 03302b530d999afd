package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int
	// Burst is the bucket size. Zero uses RequestsPerMinute.
	Burst int
}

// TokenBucketLimiter keeps one token bucket per subject and tier in memory
// and evicts buckets that have been idle for longer than the idle TTL.
type TokenBucketLimiter struct {
	tiers      map[string]TierConfig
	defaultCfg TierConfig
	idleTTL    time.Duration
	now        func() time.Time

	mu    sync.Mutex
	byKey map[string]*bucket
	hits  uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a rate limiter with per-tier configuration.
// Tiers without an entry use defaultRPM.
func NewTokenBucketLimiter(tiers map[string]TierConfig, defaultRPM int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		tiers:      tiers,
		defaultCfg: TierConfig{RequestsPerMinute: defaultRPM},
		idleTTL:    10 * time.Minute,
		now:        time.Now,
		byKey:      make(map[string]*bucket),
	}
}

// Allow consumes one token for the identity. A tier with no positive
// limit is unlimited.
func (l *TokenBucketLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.Tier()

	cfg := l.defaultCfg
	if tc, ok := l.tiers[tier]; ok {
		cfg = tc
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	key := identity.Subject + ":" + tier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		l.evictLocked(now)
	}

	if !allowed {
		return ErrTooManyRequests
	}
	return nil
}

func (l *TokenBucketLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byKey {
		if b.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
