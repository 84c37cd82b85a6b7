package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		remoteAddr string
		want       string
	}{
		{name: "single ip", header: "203.0.113.1", remoteAddr: "198.51.100.10:1234", want: "203.0.113.1"},
		{name: "multiple ips use first", header: " 203.0.113.1 , 198.51.100.2 ", remoteAddr: "198.51.100.10:1234", want: "203.0.113.1"},
		{name: "invalid forwarded falls back", header: "invalid", remoteAddr: "198.51.100.10:1234", want: "198.51.100.10"},
		{name: "empty forwarded uses remote host", remoteAddr: "198.51.100.10:1234", want: "198.51.100.10"},
		{name: "ipv6 forwarded", header: "2001:db8::1", remoteAddr: net.JoinHostPort("2001:db8::2", "443"), want: "2001:db8::1"},
		{name: "ipv6 remote fallback", header: "invalid", remoteAddr: net.JoinHostPort("2001:db8::2", "443"), want: "2001:db8::2"},
		{name: "remote without port", header: "invalid", remoteAddr: "203.0.113.1", want: "203.0.113.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set("X-Forwarded-For", tc.header)
			}
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}

func noContent(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

func send(h http.Handler, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	h := RateLimit(RateLimitOptions{Limit: 2, Window: time.Minute})(http.HandlerFunc(noContent))

	first := send(h, http.MethodPost, "/", "203.0.113.9:5000")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "/", "203.0.113.9:5000").Code)

	limited := send(h, http.MethodPost, "/", "203.0.113.9:5000")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate_limited","message":"too many requests"}`, limited.Body.String())

	assert.Equal(t, http.StatusNoContent, send(h, http.MethodPost, "/", "198.51.100.1:5000").Code)
}

func TestRateLimitWindowResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitOptions{
		Limit:  1,
		Window: time.Minute,
		Now:    func() time.Time { return now },
	})(http.HandlerFunc(noContent))

	assert.Equal(t, http.StatusNoContent, send(h, http.MethodGet, "/", "203.0.113.9:1").Code)
	limited := send(h, http.MethodGet, "/", "203.0.113.9:1")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "61", limited.Header().Get("Retry-After"))

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusNoContent, send(h, http.MethodGet, "/", "203.0.113.9:1").Code)
}

func TestRateLimitSessionKeySeparatesSessions(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(RateLimit(RateLimitOptions{Limit: 1, Window: time.Minute, Key: SessionKey("sessionID")}))
		r.Post("/pending/check", noContent)
	})

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/sessions/a/pending/check", "203.0.113.9:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(r, http.MethodPost, "/sessions/a/pending/check", "203.0.113.9:1").Code)
	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/sessions/b/pending/check", "203.0.113.9:1").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(RateLimitOptions{})(http.HandlerFunc(noContent))
	for i := 0; i < 5; i++ {
		rec := send(h, http.MethodGet, "/", "203.0.113.9:1")
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}
