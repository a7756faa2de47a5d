// Rate limiting for admin endpoints with side effects. Snapshot POSTs hit
// the database, so each client gets a bounded number per window; the limit
// and window come from the server configuration.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per client over a fixed window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
}

type clientWindow struct {
	count   int
	started time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per client per
// window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
	}
}

// Allow records a request for the client and reports whether it fits in the
// current window. A fresh or lapsed window starts over.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(now)

	cw := rl.clients[client]
	if cw == nil || now.Sub(cw.started) >= rl.window {
		rl.clients[client] = &clientWindow{count: 1, started: now}
		return true
	}
	if cw.count < rl.limit {
		cw.count++
		return true
	}
	return false
}

// RetryAfter returns whole seconds until the client's window resets.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cw := rl.clients[client]
	if cw == nil {
		return 0
	}
	left := rl.window - time.Since(cw.started)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// pruneLocked drops windows stale for a full extra window so the client map
// does not grow without bound. Caller holds the lock.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for client, cw := range rl.clients {
		if now.Sub(cw.started) >= 2*rl.window {
			delete(rl.clients, client)
		}
	}
}

// RateLimitMiddleware throttles a handler per client address, answering 429
// with a Retry-After hint once the window is spent.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !rl.Allow(client) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(client)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientAddr identifies the caller: the first X-Forwarded-For hop when
// proxied, otherwise the remote address without its port.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
