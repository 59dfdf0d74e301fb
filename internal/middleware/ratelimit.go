package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"casehub-backend/internal/transport"
)

// RateLimiter is a fixed-window counter per client IP and path. It expects
// chi's RealIP to run first so RemoteAddr is the client address.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	hits  int
	until time.Time
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts a hit for key. When the limit is reached it returns false and
// the time until the window reopens.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windows[key]
	if w == nil || !now.Before(w.until) {
		rl.dropExpiredLocked(now)
		rl.windows[key] = &window{hits: 1, until: now.Add(rl.window)}
		return true, 0
	}
	if w.hits >= rl.limit {
		return false, w.until.Sub(now)
	}
	w.hits++
	return true, 0
}

func (rl *RateLimiter) dropExpiredLocked(now time.Time) {
	for key, w := range rl.windows {
		if !now.Before(w.until) {
			delete(rl.windows, key)
		}
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(remoteHost(r) + " " + r.URL.Path)
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			transport.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
