// Package debounce coalesces bursts of signals into a single trailing action.
//
// The scheduler is a two-state machine. Idle moves to Pending(now+delay) on a
// signal. A signal while Pending pushes the deadline to now+delay. Reaching the
// deadline with no intervening signal fires the action once and returns to
// Idle, so the action runs delay after the last signal of a burst.
package debounce

import (
	"context"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/clock"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

// Phase is the scheduler state.
type Phase int

const (
	Idle Phase = iota
	Pending
)

func (p Phase) String() string {
	if p == Pending {
		return "pending"
	}
	return "idle"
}

// Machine is the transition logic with no timers attached.
type Machine struct {
	delay    time.Duration
	phase    Phase
	deadline time.Time
}

// NewMachine returns an idle machine.
func NewMachine(delay time.Duration) *Machine {
	return &Machine{delay: delay}
}

// Signal records a trigger at now and returns the new deadline.
func (m *Machine) Signal(now time.Time) time.Time {
	m.phase = Pending
	m.deadline = now.Add(m.delay)
	return m.deadline
}

// Expire fires when pending and now has reached the deadline. It reports
// whether the action should run.
func (m *Machine) Expire(now time.Time) bool {
	if m.phase != Pending || now.Before(m.deadline) {
		return false
	}
	m.phase = Idle
	m.deadline = time.Time{}
	return true
}

// Phase returns the current state.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Deadline returns the pending deadline, zero when idle.
func (m *Machine) Deadline() time.Time {
	return m.deadline
}

type timer interface {
	C() <-chan time.Time
	Stop() bool
}

type realTimer struct {
	*time.Timer
}

func (t realTimer) C() <-chan time.Time {
	return t.Timer.C
}

// Action is invoked once per settled burst. A returned error stops the scheduler.
type Action func(ctx context.Context) error

// Scheduler drives a Machine from a one-slot signal channel.
type Scheduler struct {
	name    string
	delay   time.Duration
	action  Action
	logger  *util.Logger
	signals chan struct{}

	clock    clock.Clock
	newTimer func(time.Duration) timer
}

// New returns a scheduler that runs action delay after the last signal.
func New(name string, delay time.Duration, action Action, logger *util.Logger) *Scheduler {
	return &Scheduler{
		name:    name,
		delay:   delay,
		action:  action,
		logger:  logger,
		signals: make(chan struct{}, 1),
		clock:   clock.RealClock{},
		newTimer: func(d time.Duration) timer {
			return realTimer{time.NewTimer(d)}
		},
	}
}

// Delay returns the configured quiet period.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Signal requests the action. It never blocks; a signal arriving while one is
// already queued is coalesced.
func (s *Scheduler) Signal() {
	select {
	case s.signals <- struct{}{}:
	default:
	}
}

// Run processes signals until ctx is cancelled or the action fails.
func (s *Scheduler) Run(ctx context.Context) error {
	m := NewMachine(s.delay)
	var (
		t       timer
		timerCh <-chan time.Time
	)
	arm := func(d time.Duration) {
		if t != nil {
			t.Stop()
		}
		t = s.newTimer(d)
		timerCh = t.C()
	}
	defer func() {
		if t != nil {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.signals:
			now := s.clock.Now()
			deadline := m.Signal(now)
			s.tracef("%s signal, deadline %s", s.name, deadline.Format(time.StampMilli))
			arm(deadline.Sub(now))
		case <-timerCh:
			t, timerCh = nil, nil
			now := s.clock.Now()
			if !m.Expire(now) {
				if m.Phase() == Pending {
					arm(m.Deadline().Sub(now))
				}
				continue
			}
			if err := s.action(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) tracef(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Tracef(format, args...)
	}
}
