// Package rate bounds how many contract runs may start per time window.
package rate

import (
	"sync"
	"time"
)

// Limiter is a sliding-window admission gate. The zero value is unusable;
// construct with New.
type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time

	now func() time.Time // swapped in tests
}

// New builds a limiter admitting at most max starts per window. max <= 0
// disables limiting.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window, now: time.Now}
}

// Allow reports whether another run may start now, recording the start when
// admitted.
func (l *Limiter) Allow() bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.starts[:0]
	for _, t := range l.starts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.starts = kept

	if len(l.starts) >= l.max {
		return false
	}
	l.starts = append(l.starts, now)
	return true
}

// Pending reports how many admissions remain in the current window.
func (l *Limiter) Pending() int {
	if l.max <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, t := range l.starts {
		if t.After(cutoff) {
			n++
		}
	}
	return l.max - n
}
