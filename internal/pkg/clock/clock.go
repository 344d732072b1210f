// Package clock provides the wall clock used for every expiration window
// (nonces, heartbeat, enrollment cache, reset tokens).
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock the services depend on.
type Clock interface {
	Now() time.Time
}

// Monotonic never returns a time earlier than one it already returned, even
// if the underlying wall clock is stepped backwards.
type Monotonic struct {
	base clockwork.Clock

	mu   sync.Mutex
	last time.Time
}

// NewMonotonic wraps base. A nil base uses the real clock.
func NewMonotonic(base clockwork.Clock) *Monotonic {
	if base == nil {
		base = clockwork.NewRealClock()
	}
	return &Monotonic{base: base}
}

func (m *Monotonic) Now() time.Time {
	now := m.base.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}
