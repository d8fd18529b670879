package channels

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedKeys caps the number of tracked rate-limit keys to prevent
	// memory exhaustion from attackers rotating source IPs.
	maxTrackedKeys = 4096

	// staleAfter is how long an idle key is kept before it may be pruned.
	staleAfter = 10 * time.Minute
)

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// WebhookRateLimiter applies a per-key token bucket (typically per source IP)
// and bounds the number of tracked keys. Safe for concurrent use.
// A nil *WebhookRateLimiter allows everything.
type WebhookRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*rateLimitEntry
}

// NewWebhookRateLimiter allows perMinute requests per key, bursting up to
// perMinute. perMinute <= 0 disables limiting and returns nil.
func NewWebhookRateLimiter(perMinute int) *WebhookRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &WebhookRateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		entries: make(map[string]*rateLimitEntry),
	}
}

// Allow returns true if the key is within rate limits.
// Automatically prunes stale entries and enforces a hard cap on tracked keys.
func (r *WebhookRateLimiter) Allow(key string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	e, ok := r.entries[key]
	if !ok {
		r.evictLocked(now)
		e = &rateLimitEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (r *WebhookRateLimiter) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *WebhookRateLimiter) evictLocked(now time.Time) {
	if len(r.entries) < maxTrackedKeys {
		return
	}
	for k, e := range r.entries {
		if now.Sub(e.lastSeen) >= staleAfter {
			delete(r.entries, k)
		}
	}
	// Hard eviction if still at cap (FIFO-ish via map iteration)
	for len(r.entries) >= maxTrackedKeys {
		for k := range r.entries {
			delete(r.entries, k)
			break
		}
	}
}
