package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =========================================================================
// REAL IP
// =========================================================================

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.2:1234", "1.2.3.4"},
		{"real ip header", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.2:1234", "5.6.7.8"},
		{"remote addr", nil, "9.9.9.9:5555", "9.9.9.9"},
		{"remote without port", nil, "9.9.9.9", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, RealIP(r))
		})
	}
}

// =========================================================================
// RATE LIMITER
// =========================================================================

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("ip", 2, time.Minute))
	assert.True(t, rl.Allow("ip", 2, time.Minute))
	assert.False(t, rl.Allow("ip", 2, time.Minute))
	assert.True(t, rl.Allow("other", 2, time.Minute), "keys are independent")

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("ip", 2, time.Minute))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("a", 1, time.Minute)

	now = now.Add(time.Hour)
	rl.Cleanup()

	assert.Empty(t, rl.entries)
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter()
	h := RateLimit(rl, RealIP, 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

// =========================================================================
// REQUEST LOGGER
// =========================================================================

func TestLogger_RecordsStatusAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "path=/api/x")
	assert.Contains(t, out, "bytes=4")
}
