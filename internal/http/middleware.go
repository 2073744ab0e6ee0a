package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const clientIPContextKey contextKey = "client_ip"

// ExtractClientIP returns the caller's IP, preferring the first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext returns the IP stored by ClientIPMiddleware.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// ClientIPMiddleware stores the client IP in the request context and adds it to
// the request's zerolog logger, so every instruction log line carries it.
func ClientIPMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ExtractClientIP(r)

			ctx := context.WithValue(r.Context(), clientIPContextKey, ip)
			ctx = logger.With().Str("client_ip", ip).Logger().WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Cooldown allows one event per key per interval. The faucet uses it to rate limit
// airdrops by client IP.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	last     map[string]time.Time
	pruned   time.Time
}

// NewCooldown creates a cooldown. A zero interval allows everything.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Allow records an event for key and reports whether it is outside the cooldown.
// Returns how long the caller must wait when it is not.
func (c *Cooldown) Allow(key string) (bool, time.Duration) {
	if c.interval <= 0 {
		return true, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok {
		if wait := c.interval - now.Sub(last); wait > 0 {
			return false, wait
		}
	}

	c.last[key] = now
	c.prune(now)
	return true, 0
}

// prune drops keys whose cooldown has expired, at most once per interval. Callers hold mu.
func (c *Cooldown) prune(now time.Time) {
	if now.Sub(c.pruned) < c.interval {
		return
	}
	c.pruned = now

	for key, last := range c.last {
		if now.Sub(last) >= c.interval {
			delete(c.last, key)
		}
	}
}
