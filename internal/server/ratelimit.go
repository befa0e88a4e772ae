package server

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window per-client counter: each client host
// gets maxPerMin requests per wall-clock minute. A zero limit disables
// limiting entirely.
type RateLimiter struct {
	mu        sync.Mutex
	maxPerMin int
	windows   map[string]*clientWindow
}

type clientWindow struct {
	start int64 // unix minute the window opened
	count int
}

// NewRateLimiter creates a limiter allowing maxPerMin requests per
// client per minute
func NewRateLimiter(maxPerMin int) *RateLimiter {
	return &RateLimiter{
		maxPerMin: maxPerMin,
		windows:   make(map[string]*clientWindow),
	}
}

// Allow records one request for the client and reports whether it is
// within the current window's budget.
func (l *RateLimiter) Allow(client string) bool {
	if l.maxPerMin <= 0 {
		return true
	}
	minute := time.Now().Unix() / 60

	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.windows[client]
	if !ok || window.start != minute {
		window = &clientWindow{start: minute}
		l.windows[client] = window
	}
	window.count++
	return window.count <= l.maxPerMin
}
