package booksurf

import (
	"context"
	"sync"
	"time"
)

// FixedWindowLimiter is an in-process rate limiter keyed by client address.
// Each key gets at most max hits per window; the window resets wholesale
// rather than sliding. Good enough for a single instance in front of the
// auth endpoints.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	entries map[string]*windowEntry
}

type windowEntry struct {
	start time.Time
	count int
}

type LimiterOption func(*FixedWindowLimiter)

// WithLimiterClock overrides the limiter clock, mostly for tests
func WithLimiterClock(clock func() time.Time) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if clock != nil {
			l.now = clock
		}
	}
}

// NewFixedWindowLimiter allows max hits per key per window
func NewFixedWindowLimiter(max int, window time.Duration, opts ...LimiterOption) *FixedWindowLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}

	l := &FixedWindowLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: map[string]*windowEntry{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Limit reports whether the key may proceed. An empty key is always
// allowed: we cannot attribute the request to a client, and failing open
// keeps an address-less proxy setup from locking everyone out.
func (l *FixedWindowLimiter) Limit(_ context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.start) >= l.window {
		l.entries[key] = &windowEntry{start: now, count: 1}
		return true, nil
	}

	if entry.count >= l.max {
		return false, nil
	}

	entry.count++
	return true, nil
}

// prune drops expired windows so the map does not grow with every address
// ever seen. Called under the lock.
func (l *FixedWindowLimiter) prune(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.start) >= l.window {
			delete(l.entries, key)
		}
	}
}
