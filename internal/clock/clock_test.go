package clock

import (
	"testing"
	"time"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	c.Advance(150 * time.Millisecond)
	c.Advance(50 * time.Millisecond)
	if got, want := c.Now(), start.Add(200*time.Millisecond); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestRealClockMonotonic(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	got := c.Now()
	if got.Before(before) {
		t.Fatalf("RealClock.Now() = %v is before %v", got, before)
	}
}
