package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenBucket: max tokens = burst, refilled at rate per second.
type tokenBucket struct {
	tokens float64
	last   time.Time
}

type limiter struct {
	rate  float64
	burst float64
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	m         map[string]*tokenBucket
	lastSweep time.Time
}

func newLimiter(rps float64, burst int, ttl time.Duration) *limiter {
	if burst < 1 {
		burst = 1
	}
	return &limiter{
		rate:  rps,
		burst: float64(burst),
		ttl:   ttl,
		now:   time.Now,
		m:     make(map[string]*tokenBucket),
	}
}

func (l *limiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	tb := l.m[key]
	if tb == nil {
		tb = &tokenBucket{tokens: l.burst, last: now}
		l.m[key] = tb
	}
	tb.tokens = min(l.burst, tb.tokens+now.Sub(tb.last).Seconds()*l.rate)
	tb.last = now

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// sweep drops buckets idle for longer than ttl. Caller holds mu.
func (l *limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	for k, tb := range l.m {
		if now.Sub(tb.last) > l.ttl {
			delete(l.m, k)
		}
	}
	l.lastSweep = now
}

// RateLimit limits requests per API key, or per client IP when no key is sent.
// RateLimit(60, 10) => 60 req/min with burst 10. reqPerMin <= 0 disables it.
func RateLimit(reqPerMin, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		return passthrough
	}
	l := newLimiter(float64(reqPerMin)/60.0, burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientKey(r)) {
				w.Header().Set("Retry-After", "60")
				Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if k := APIKey(r); k != "" {
		return "key:" + k
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	// honor X-Forwarded-For if behind a proxy
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
