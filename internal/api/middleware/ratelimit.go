package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snowballr/snowballr-api/internal/api/response"
)

const limiterTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	perSecond    rate.Limit
	burst        int
	trustForward bool
	now          func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// TrustForwardedFor keys clients by the first X-Forwarded-For address. Only
// enable it behind a proxy that overwrites the header.
func TrustForwardedFor(trust bool) RateLimiterOption {
	return func(l *RateLimiter) {
		l.trustForward = trust
	}
}

// NewRateLimiter creates a limiter allowing perSecond requests per client
// with the given burst. Clients are keyed by remote host unless
// TrustForwardedFor is set.
func NewRateLimiter(perSecond, burst int, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes a token for key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops idle buckets. Callers hold mu.
func (l *RateLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) > limiterTTL {
			delete(l.buckets, k)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, l.trustForward)
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			response.Err(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustForward bool) string {
	if trustForward {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
