package handler

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// RateLimiter allows a fixed number of requests per client in each window.
// Counters reset lazily when a window has elapsed.
type RateLimiter struct {
	requests    int
	interval    time.Duration
	clock       clock.Clock
	mu          sync.Mutex
	counters    map[string]int
	windowStart time.Time
}

func NewRateLimiter(requests int, interval time.Duration, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{
		requests:    requests,
		interval:    interval,
		clock:       clk,
		counters:    make(map[string]int),
		windowStart: clk.Now(),
	}
}

func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now := rl.clock.Now(); now.Sub(rl.windowStart) >= rl.interval {
		rl.counters = make(map[string]int)
		rl.windowStart = now
	}
	if rl.counters[client] >= rl.requests {
		return false
	}
	rl.counters[client]++
	return true
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
