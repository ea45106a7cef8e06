package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"sixinarow/internal/hub"
)

func TestRateLimiterWindow(t *testing.T) {
	mock := clock.NewMock()
	rl := NewRateLimiter(2, time.Minute, mock)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	mock.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	s := newServer(t, hub.Options{}, NewRateLimiter(1, time.Minute, clock.NewMock()))

	resp, err := http.Get(s.srv.URL + "/api/games/available")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(s.srv.URL + "/api/games/available")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many requests", decode[errorResponse](t, resp).Error)

	// health checks are never limited
	health, err := http.Get(s.srv.URL + "/health")
	assert.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.RemoteAddr = "opaque"
	assert.Equal(t, "opaque", clientIP(r))
}
