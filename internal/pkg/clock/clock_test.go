package clock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMonotonic_NeverGoesBack(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(start)
	m := NewMonotonic(fake)

	first := m.Now()
	if !first.Equal(start) {
		t.Fatalf("expected %v, got %v", start, first)
	}

	fake.Advance(10 * time.Second)
	second := m.Now()
	if !second.Equal(start.Add(10 * time.Second)) {
		t.Fatalf("expected clock to advance, got %v", second)
	}

	stepped := clockwork.NewFakeClockAt(start)
	m.base = stepped
	if got := m.Now(); !got.Equal(second) {
		t.Fatalf("expected %v after backwards step, got %v", second, got)
	}
}
