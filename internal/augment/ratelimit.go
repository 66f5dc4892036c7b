package augment

import (
	"sync"
	"time"
)

// FixedWindow allows at most Max calls per window. Calls over the limit are
// refused, never queued.
type FixedWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	count  int
	start  time.Time
	now    func() time.Time
}

func NewFixedWindow(max int, window time.Duration) *FixedWindow {
	if max <= 0 {
		max = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{max: max, window: window, now: time.Now}
}

// Allow consumes one call from the current window and reports whether it fit.
func (l *FixedWindow) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.start.IsZero() || now.Sub(l.start) > l.window {
		l.start = now
		l.count = 0
	}
	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}

// Remaining reports how many calls the current window still allows.
func (l *FixedWindow) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.start.IsZero() || l.now().Sub(l.start) > l.window {
		return l.max
	}
	return l.max - l.count
}
