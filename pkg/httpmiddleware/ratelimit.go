package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-promotions/internal/domain/auth"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, KeyByClient is used.
	KeyFunc func(*http.Request) string
}

// Decision is the outcome of a single Limiter check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// entry tracks request counts across two adjacent windows.
type entry struct {
	prevCount float64
	prevStart time.Time
	currCount float64
	currStart time.Time
}

// MemoryLimiter is a process-local sliding window Limiter.
type MemoryLimiter struct {
	max     int
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryLimiter creates a MemoryLimiter allowing max requests per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		entries: make(map[string]*entry),
	}
}

// Allow implements Limiter. It never fails.
func (rl *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok {
		e = &entry{currStart: now}
		rl.entries[key] = e
	}

	if now.Sub(e.currStart) >= rl.window {
		e.prevCount = e.currCount
		e.prevStart = e.currStart
		e.currCount = 0
		e.currStart = now.Truncate(rl.window)
		if now.Sub(e.prevStart) >= 2*rl.window {
			e.prevCount = 0
		}
	}

	// Weight the previous window by its overlap with the sliding window.
	elapsed := now.Sub(e.currStart)
	overlap := max(1.0-elapsed.Seconds()/rl.window.Seconds(), 0)
	effective := e.prevCount*overlap + e.currCount
	resetAt := e.currStart.Add(rl.window)

	if effective >= float64(rl.max) {
		return Decision{ResetAt: resetAt}, nil
	}

	e.currCount++
	effective++
	return Decision{
		Allowed:   true,
		Remaining: max(int(float64(rl.max)-effective), 0),
		ResetAt:   resetAt,
	}, nil
}

// Cleanup removes entries whose windows have fully expired.
func (rl *MemoryLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.entries {
		if now.Sub(e.currStart) >= 2*rl.window {
			delete(rl.entries, key)
		}
	}
}

// StartCleanup evicts expired entries every two windows until ctx is done.
func (rl *MemoryLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * rl.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.Cleanup(now)
			}
		}
	}()
}

// RateLimit enforces cfg with a process-local limiter and no cleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return RateLimitWith(NewMemoryLimiter(cfg.Max, cfg.Window), cfg)
}

// RateLimitWithCleanup is like RateLimit but evicts stale entries in the
// background until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewMemoryLimiter(cfg.Max, cfg.Window)
	l.StartCleanup(ctx)
	return RateLimitWith(l, cfg)
}

// RateLimitWith enforces cfg using l. Exceeding the limit yields 429 with a
// JSON body; every response carries the X-RateLimit-* headers. Limiter
// failures let the request through.
func RateLimitWith(l Limiter, cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyByClient
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), keyFunc(r), time.Now())
			if err != nil {
				zctx.From(r.Context()).Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := max(time.Until(d.ResetAt), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// KeyByClient keys authenticated requests by API key id and anonymous ones
// by client IP.
func KeyByClient(r *http.Request) string {
	if info, ok := auth.FromContext(r.Context()); ok {
		return "key:" + info.ID
	}
	return "ip:" + clientIP(r)
}

// clientIP checks X-Forwarded-For first, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
