package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages rate limiting for API requests. Signed-in users are
// keyed by user id, everyone else by client IP.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex

	anonymousLimit     rate.Limit
	authenticatedLimit rate.Limit

	// Burst size (number of requests that can be made in a burst)
	burstSize int
	idleTTL   time.Duration
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(anonymousRPS, authenticatedRPS int) *RateLimiter {
	return &RateLimiter{
		limiters:           make(map[string]*limiterEntry),
		anonymousLimit:     rate.Limit(anonymousRPS),
		authenticatedLimit: rate.Limit(authenticatedRPS),
		burstSize:          10,
		idleTTL:            10 * time.Minute,
		now:                time.Now,
	}
}

// getLimiter returns the limiter for a key, creating it on first use
func (rl *RateLimiter) getLimiter(key string, authenticated bool) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if entry, ok := rl.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limit := rl.anonymousLimit
	if authenticated {
		limit = rl.authenticatedLimit
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(limit, rl.burstSize), lastSeen: now}
	rl.limiters[key] = entry
	return entry.limiter
}

// Prune drops limiters that have been idle longer than the idle TTL
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// RateLimitMiddleware creates a middleware that enforces rate limiting.
// It must run after the auth middleware so the caller identity is known.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, authenticated := clientIP(r), false
			if identity := identityFromContext(r.Context()); identity != nil {
				key, authenticated = "user:"+identity.UserID, true
			}

			limiter := rl.getLimiter(key, authenticated)
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"limit": float64(limiter.Limit()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
