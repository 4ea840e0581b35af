// Package ratelimit implements a process-local fixed-window counter.
//
// Windows live in memory only. A restart forgets every window, which can only
// ever allow more actions, never block one.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the answer to a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type windowKey struct {
	subject string
	scope   string
}

type window struct {
	start  time.Time
	length time.Duration
	count  int
}

// Limiter counts actions per (subject, scope) in fixed windows. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[windowKey]*window
	now     func() time.Time
}

// New returns a limiter using the wall clock.
func New() *Limiter {
	return NewWithClock(time.Now)
}

// NewWithClock returns a limiter reading time from now.
func NewWithClock(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		windows: make(map[windowKey]*window),
		now:     now,
	}
}

// Allow records one action for (subject, scope) and reports whether it fits in
// the current window of maxCount actions per windowLen.
func (l *Limiter) Allow(subject, scope string, maxCount int, windowLen time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := windowKey{subject: subject, scope: scope}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= windowLen {
		w = &window{start: now, length: windowLen, count: 1}
		l.windows[key] = w
		return Decision{
			Allowed:   maxCount >= 1,
			Remaining: max(maxCount-1, 0),
			ResetAt:   now.Add(windowLen),
		}
	}

	w.count++
	w.length = windowLen
	return Decision{
		Allowed:   w.count <= maxCount,
		Remaining: max(maxCount-w.count, 0),
		ResetAt:   w.start.Add(windowLen),
	}
}

// Prune drops windows that have expired at now and returns how many were removed.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= w.length {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
