package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type rateWindow struct {
	startedAt time.Time
	hits      int
}

// LoginRateLimiter applies a fixed per-IP window to the login endpoint.
// Memory is bounded: stale windows are swept whenever the map grows past
// maxEntries.
type LoginRateLimiter struct {
	mu         sync.Mutex
	maxHits    int
	window     time.Duration
	windows    map[string]*rateWindow
	maxEntries int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:    maxHits,
		window:     window,
		windows:    make(map[string]*rateWindow),
		maxEntries: 5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(clientIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[ip]
	if !ok || now.Sub(current.startedAt) >= l.window {
		l.windows[ip] = &rateWindow{startedAt: now, hits: 1}
		l.sweepLocked(now)
		return true, 0
	}

	current.hits++
	if current.hits <= l.maxHits {
		return true, 0
	}

	retryAfter := current.startedAt.Add(l.window).Sub(now)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return false, retryAfter
}

func (l *LoginRateLimiter) sweepLocked(now time.Time) {
	if len(l.windows) <= l.maxEntries {
		return
	}
	for ip, current := range l.windows {
		if now.Sub(current.startedAt) >= l.window {
			delete(l.windows, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		// First hop is the original client.
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
