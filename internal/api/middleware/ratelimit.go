package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client. A client may burst up to
// the full request count and then refills evenly over the window.
type RateLimiter struct {
	requests int
	every    time.Duration
	idle     time.Duration
	now      func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(requests int, windowSeconds int) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	window := time.Duration(windowSeconds) * time.Second

	return &RateLimiter{
		requests: requests,
		every:    window / time.Duration(requests),
		idle:     2 * window,
		now:      time.Now,
		clients:  make(map[string]*client),
	}
}

// Allow spends one token for key. It returns the tokens left and, when
// denied, how long until the next token.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Every(rl.every), rl.requests)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, delay
	}

	remaining := int(math.Max(0, math.Floor(c.limiter.TokensAt(now))))
	return true, remaining, 0
}

// sweep drops idle clients at most once per idle period. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idle {
			delete(rl.clients, key)
		}
	}
}

// RateLimit limits requests per client IP.
func RateLimit(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).Middleware(clientIP)
}

// RateLimitByUser limits requests per authenticated user, falling back to
// the client IP. It must run after Auth.
func RateLimitByUser(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).Middleware(func(r *http.Request) string {
		if userID := GetUserID(r.Context()); userID != "" {
			return "user:" + userID
		}
		return clientIP(r)
	})
}

func (rl *RateLimiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, retryAfter := rl.Allow(keyFunc(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
