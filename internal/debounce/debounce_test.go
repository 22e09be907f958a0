package debounce

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/clock"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMachineTransitions(t *testing.T) {
	m := NewMachine(100 * time.Millisecond)
	if m.Phase() != Idle {
		t.Fatalf("new machine should be idle")
	}
	if m.Expire(epoch) {
		t.Fatalf("idle machine must not fire")
	}

	m.Signal(epoch)
	m.Signal(epoch.Add(60 * time.Millisecond))
	deadline := m.Signal(epoch.Add(120 * time.Millisecond))
	if want := epoch.Add(220 * time.Millisecond); !deadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", deadline, want)
	}
	if m.Expire(epoch.Add(219 * time.Millisecond)) {
		t.Fatalf("fired before deadline")
	}
	if !m.Expire(deadline) {
		t.Fatalf("expected fire at deadline")
	}
	if m.Phase() != Idle || !m.Deadline().IsZero() {
		t.Fatalf("expected idle after firing, got %v %v", m.Phase(), m.Deadline())
	}
	if m.Expire(deadline.Add(time.Second)) {
		t.Fatalf("must fire once per burst")
	}
}

type manualTimer struct {
	ch       chan time.Time
	duration time.Duration
	stopped  atomic.Bool
}

func (m *manualTimer) C() <-chan time.Time { return m.ch }

func (m *manualTimer) Stop() bool {
	return !m.stopped.Swap(true)
}

func newManualScheduler(delay time.Duration, action Action) (*Scheduler, *clock.FakeClock, chan *manualTimer) {
	s := New("test", delay, action, nil)
	fake := clock.NewFakeClock(epoch)
	created := make(chan *manualTimer, 16)
	s.clock = fake
	s.newTimer = func(d time.Duration) timer {
		mt := &manualTimer{ch: make(chan time.Time, 1), duration: d}
		created <- mt
		return mt
	}
	return s, fake, created
}

func waitTimer(t *testing.T, created <-chan *manualTimer) *manualTimer {
	t.Helper()
	select {
	case mt := <-created:
		return mt
	case <-time.After(time.Second):
		t.Fatal("scheduler did not arm a timer")
		return nil
	}
}

func TestSchedulerBurstFiresOnceAfterLastSignal(t *testing.T) {
	fired := make(chan time.Time, 4)
	var s *Scheduler
	var fake *clock.FakeClock
	s, fake, created := newManualScheduler(50*time.Millisecond, func(context.Context) error {
		fired <- fake.Now()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	var timers []*manualTimer
	for i := 0; i < 4; i++ {
		s.Signal()
		timers = append(timers, waitTimer(t, created))
		fake.Advance(20 * time.Millisecond)
	}
	for i, mt := range timers[:len(timers)-1] {
		if !mt.stopped.Load() {
			t.Fatalf("timer %d should have been replaced", i)
		}
	}
	last := timers[len(timers)-1]
	if last.duration != 50*time.Millisecond {
		t.Fatalf("rearmed for %v, want full delay", last.duration)
	}

	// Last signal happened at epoch+60ms; the clock now reads epoch+80ms.
	fake.Advance(30 * time.Millisecond)
	last.ch <- fake.Now()

	select {
	case at := <-fired:
		if want := epoch.Add(110 * time.Millisecond); !at.Equal(want) {
			t.Fatalf("fired at %v, want %v", at, want)
		}
	case <-time.After(time.Second):
		t.Fatal("action did not fire")
	}
	select {
	case <-fired:
		t.Fatal("action fired more than once for a single burst")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestSchedulerEarlyTimerRearms(t *testing.T) {
	var fires atomic.Int32
	s, fake, created := newManualScheduler(50*time.Millisecond, func(context.Context) error {
		fires.Add(1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Signal()
	first := waitTimer(t, created)
	fake.Advance(30 * time.Millisecond)
	first.ch <- fake.Now()

	second := waitTimer(t, created)
	if second.duration != 20*time.Millisecond {
		t.Fatalf("rearmed for %v, want remaining 20ms", second.duration)
	}
	if fires.Load() != 0 {
		t.Fatalf("fired before deadline")
	}
}

func TestSchedulerRealTimers(t *testing.T) {
	const delay = 40 * time.Millisecond
	var fires atomic.Int32
	s := New("retile", delay, func(context.Context) error {
		fires.Add(1)
		return nil
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 5; i++ {
		s.Signal()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(4 * delay)
	if got := fires.Load(); got != 1 {
		t.Fatalf("burst produced %d fires, want 1", got)
	}

	for i := 0; i < 3; i++ {
		s.Signal()
		time.Sleep(4 * delay)
	}
	if got := fires.Load(); got != 4 {
		t.Fatalf("spaced signals produced %d total fires, want 4", got)
	}
}

func TestSchedulerActionErrorStopsRun(t *testing.T) {
	boom := errors.New("pipe closed")
	s, fake, created := newManualScheduler(10*time.Millisecond, func(context.Context) error {
		return boom
	})
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	s.Signal()
	mt := waitTimer(t, created)
	fake.Advance(10 * time.Millisecond)
	mt.ch <- fake.Now()

	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Fatalf("Run returned %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after action failure")
	}
}

func TestSignalNeverBlocks(t *testing.T) {
	s := New("idle", time.Second, func(context.Context) error { return nil }, nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Signal()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Signal blocked without a running scheduler")
	}
	if len(s.signals) != 1 {
		t.Fatalf("expected one coalesced signal, got %d", len(s.signals))
	}
}
