package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/auth"
)

// RealIP returns the client address, preferring CF-Connecting-IP, then the
// first X-Forwarded-For hop, then RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter per key, kept in memory.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Allow counts one hit for key and reports whether it fits in limit per period.
func (rl *RateLimiter) Allow(key string, limit int, period time.Duration) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(period)}
		rl.windows[key] = w
	}
	w.count++
	return Decision{
		Allowed:   w.count <= limit,
		Remaining: max(limit-w.count, 0),
		ResetIn:   w.resetAt.Sub(now),
	}
}

// Cleanup drops windows that have ended.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}

// ByUser keys requests by the authenticated user, falling back to the client IP.
func ByUser(r *http.Request) string {
	if id := auth.UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + RealIP(r)
}

// RateLimit rejects requests beyond limit per period for the key returned by
// keyFunc. Responses carry X-RateLimit-* headers.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, period time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Allow(keyFunc(r), limit, period)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
