package server

import (
	"sync"
	"time"
)

// RateRule caps a named operation at Limit requests per Window.
type RateRule struct {
	Limit  int
	Window time.Duration
}

type windowState struct {
	remaining int
	resetAt   time.Time
}

// RateLimiter is a fixed-window limiter keyed by (rule, client).
type RateLimiter struct {
	mu    sync.Mutex
	rules map[string]RateRule
	state map[string]*windowState
	now   func() time.Time
}

func NewRateLimiter(rules map[string]RateRule) *RateLimiter {
	return &RateLimiter{
		rules: rules,
		state: make(map[string]*windowState),
		now:   time.Now,
	}
}

// Allow reports whether the client may perform the operation covered
// by rule. Unknown rules are never limited.
func (l *RateLimiter) Allow(rule, clientID string) bool {
	r, ok := l.rules[rule]
	if !ok || r.Limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := rule + "|" + clientID
	s, ok := l.state[key]
	if !ok || !now.Before(s.resetAt) {
		s = &windowState{remaining: r.Limit, resetAt: now.Add(r.Window)}
		l.state[key] = s
	}
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}
