// Package activity tracks when the user last interacted with the app. It does
// not lock anything itself: the PIN manager asks IsInactive when the app comes
// to the foreground or when the periodic Watch loop fires.
package activity

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout is the inactivity threshold used when none is configured.
const DefaultTimeout = 5 * time.Minute

// Kind is a qualifying interaction.
type Kind string

const (
	KindTouch      Kind = "touch"
	KindGesture    Kind = "gesture"
	KindNavigation Kind = "navigation"
	KindKeyboard   Kind = "keyboard"
	KindAPICall    Kind = "api_call"
)

// Monitor holds the rolling last-activity timestamp. Safe for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	last     time.Time
	lastKind Kind
	timeout  time.Duration
	now      func() time.Time
}

// NewMonitor starts a monitor whose last activity is "now". A non-positive
// timeout selects DefaultTimeout.
func NewMonitor(timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := &Monitor{timeout: timeout, now: time.Now}
	m.last = m.now()
	return m
}

// Record marks a qualifying interaction.
func (m *Monitor) Record(kind Kind) {
	m.mu.Lock()
	m.last = m.now()
	m.lastKind = kind
	m.mu.Unlock()
}

// Reset restarts the inactivity window, e.g. right after an unlock so the
// app does not lock again immediately.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.last = m.now()
	m.lastKind = ""
	m.mu.Unlock()
}

func (m *Monitor) LastActivity() (time.Time, Kind) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.lastKind
}

func (m *Monitor) TimeSinceLastActivity() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().Sub(m.last)
}

// IsInactive reports now - lastActivity > timeout.
func (m *Monitor) IsInactive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().Sub(m.last) > m.timeout
}

func (m *Monitor) Timeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeout
}

// SetTimeout changes the threshold; non-positive values are ignored.
func (m *Monitor) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

// Watch calls check every interval until ctx is done. It blocks; run it in its
// own goroutine.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration, check func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
