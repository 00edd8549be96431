package devserver

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorIdleLimit is how long a client's limiter survives without traffic
// before it is evicted.
const visitorIdleLimit = 3 * time.Minute

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks one token bucket per client. Logged-in clients are
// keyed by their session cookie so several users behind one address get
// independent budgets; anonymous traffic falls back to the IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter allowing rps requests per second
// with the given burst per client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request from key is within its budget. Idle
// visitors are evicted when a new key arrives, keeping the map bounded by
// active clients.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		for k, old := range rl.visitors {
			if now.Sub(old.lastSeen) > visitorIdleLimit {
				delete(rl.visitors, k)
			}
		}
		v = &visitor{lim: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	return v.lim.Allow()
}

// clientKey buckets a request for rate limiting.
func clientKey(r *http.Request) string {
	if c, err := r.Cookie("sessionid"); err == nil && c.Value != "" {
		return "session:" + c.Value
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	// RemoteAddr is rewritten by the RealIP middleware upstream.
	return r.RemoteAddr
}

// RateLimitMiddleware returns a middleware enforcing limiter per client.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
