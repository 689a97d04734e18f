// Package ratelimit bounds how many requests one user may make within a
// trailing window. The budget is keyed by user id alone, so every tenant
// draws from the same allowance.
package ratelimit

import (
	"sync"
	"time"
)

const sweepEvery = 1000

// Window is a sliding-window log limiter guarded by a single mutex.
//
// A check prunes the user's timestamps older than the window, denies when
// limit or more remain (the denied attempt is not recorded), and otherwise
// records now. Every sweepEvery checks, users with no timestamps left in the
// window are dropped so idle users do not accumulate.
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
	checks int
}

// New returns a Window admitting limit requests per window per user.
func New(limit int, window time.Duration) *Window {
	return &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// WithClock overrides the time source. Intended for tests.
func (w *Window) WithClock(now func() time.Time) *Window {
	w.now = now
	return w
}

// Allow reports whether user may proceed and, if so, consumes one unit.
func (w *Window) Allow(user string) bool {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.checks++
	if w.checks%sweepEvery == 0 {
		w.sweep(now)
	}

	ts := prune(w.hits[user], now.Add(-w.window))
	if len(ts) >= w.limit {
		w.hits[user] = ts
		return false
	}
	w.hits[user] = append(ts, now)
	return true
}

// Remaining returns how many requests user could still make right now.
func (w *Window) Remaining(user string) int {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	ts := prune(w.hits[user], now.Add(-w.window))
	if len(ts) == 0 {
		delete(w.hits, user)
	} else {
		w.hits[user] = ts
	}
	if n := w.limit - len(ts); n > 0 {
		return n
	}
	return 0
}

// Users returns how many users currently hold window state.
func (w *Window) Users() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

func (w *Window) sweep(now time.Time) {
	cutoff := now.Add(-w.window)
	for u, ts := range w.hits {
		if ts = prune(ts, cutoff); len(ts) == 0 {
			delete(w.hits, u)
		} else {
			w.hits[u] = ts
		}
	}
}

// prune drops timestamps at or before cutoff. ts is ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
