package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// Other keys have their own buckets.
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    100 * time.Millisecond,
		BurstSize:         0,
	})

	for i := 0; i < 100; i++ {
		rl.Allow("a")
	}
	assert.False(t, rl.Allow("a"))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterRemaining(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	assert.Equal(t, 5, rl.Remaining("a"))
	rl.Allow("a")
	assert.Equal(t, 4, rl.Remaining("a"))
}

func TestWriteRateLimitPassesReads(t *testing.T) {
	m := NewWriteRateLimit(&RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config/site", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestWriteRateLimitBlocksWrites(t *testing.T) {
	m := NewWriteRateLimit(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	put := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/config/site", nil)
		if actor != "" {
			req.Header.Set("X-Actor", actor)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, put("alice").Code)
	assert.Equal(t, http.StatusOK, put("alice").Code)

	rec := put("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// A different actor is unaffected.
	assert.Equal(t, http.StatusOK, put("bob").Code)
}

func TestWriteRateLimitHeaders(t *testing.T) {
	m := NewWriteRateLimit(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/config/site", nil)
	req.Header.Set("X-Actor", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/config/site", nil)
	req.Header.Set("X-Actor", "alice")
	assert.Equal(t, "actor:alice", clientKey(req))

	req = httptest.NewRequest(http.MethodPut, "/config/site", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, "ip:10.0.0.1", clientKey(req))

	req = httptest.NewRequest(http.MethodPut, "/config/site", nil)
	assert.Equal(t, "ip:"+req.RemoteAddr, clientKey(req))
}
