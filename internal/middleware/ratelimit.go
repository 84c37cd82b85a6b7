package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// RateLimitOptions configures a fixed-window limiter. Each limiter keeps its
// own buckets, so session creation and session actions have separate budgets.
type RateLimitOptions struct {
	Limit  int
	Window time.Duration
	// Key picks the bucket for a request. Defaults to ClientIP.
	Key func(*http.Request) string
	Now func() time.Time
}

type window struct {
	used  int
	reset time.Time
}

type limiter struct {
	opts      RateLimitOptions
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

// take spends one request from key's window and reports the remaining
// budget, or how long to wait when the window is exhausted.
func (l *limiter) take(key string) (remaining int, wait time.Duration, ok bool) {
	now := l.opts.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.nextSweep) {
		for k, w := range l.windows {
			if now.After(w.reset) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.opts.Window)
	}
	w, found := l.windows[key]
	if !found || now.After(w.reset) {
		w = &window{reset: now.Add(l.opts.Window)}
		l.windows[key] = w
	}
	if w.used >= l.opts.Limit {
		return 0, w.reset.Sub(now), false
	}
	w.used++
	return l.opts.Limit - w.used, 0, true
}

// RateLimit allows Limit requests per key in each Window. A non-positive
// Limit disables it.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Key == nil {
		opts.Key = ClientIP
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &limiter{opts: opts, windows: make(map[string]*window)}
	return func(next http.Handler) http.Handler {
		if opts.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, wait, ok := l.take(opts.Key(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(opts.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionKey buckets requests per client and session, so one busy session
// does not drain the budget of another session from the same address.
// It must run below the route that declares param.
func SessionKey(param string) func(*http.Request) string {
	return func(r *http.Request) string {
		return ClientIP(r) + "|" + chi.URLParam(r, param)
	}
}

// ClientIP prefers the first valid X-Forwarded-For entry over RemoteAddr.
func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
