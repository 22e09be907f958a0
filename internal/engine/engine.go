package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/config"
	"github.com/omark96/komorebi-custom-offset/internal/ipc"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/rules"
	"github.com/omark96/komorebi-custom-offset/internal/state"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

// StateSource answers the one-shot startup state query.
type StateSource interface {
	State(ctx context.Context) (state.Snapshot, error)
}

// Signaler receives "offsets changed" notifications for the retile scheduler.
type Signaler interface {
	Signal()
}

// SubscribeFunc opens the notification stream.
type SubscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

// ErrStreamClosed is returned when the notification stream ends.
var ErrStreamClosed = errors.New("notification stream closed")

// Engine ties together the policy table, live state, and IPC. Run is the
// only writer of the tracker.
type Engine struct {
	dispatcher layout.Dispatcher
	subscribe  SubscribeFunc
	logger     *util.Logger
	policies   *rules.Table
	tracker    *state.Tracker
	metrics    *metrics.Collector
	retile     Signaler
	names      []string

	changes uint64
	history *changeLog

	mu     sync.Mutex
	status Status
}

// Bootstrap queries the startup snapshot, seeds a tracker from it, and
// resolves the policy table against its topology.
func Bootstrap(ctx context.Context, src StateSource, cfg *config.Config) (*rules.Table, *state.Tracker, []string, error) {
	snap, err := src.State(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query initial state: %w", err)
	}
	tracker := state.NewTracker(cfg.AdoptManagerOffsets)
	if err := tracker.ApplySnapshot(snap); err != nil {
		return nil, nil, nil, err
	}
	table, err := rules.BuildPolicies(cfg, snap.Topology())
	if err != nil {
		return nil, nil, nil, err
	}
	names := make([]string, len(snap.Monitors))
	for i, m := range snap.Monitors {
		names[i] = m.Name
	}
	return table, tracker, names, nil
}

// New creates an engine over a seeded tracker. retile may be nil, which
// disables retiling.
func New(dispatcher layout.Dispatcher, subscribe SubscribeFunc, logger *util.Logger, policies *rules.Table, tracker *state.Tracker, collector *metrics.Collector, retile Signaler) *Engine {
	return &Engine{
		dispatcher: dispatcher,
		subscribe:  subscribe,
		logger:     logger,
		policies:   policies,
		tracker:    tracker,
		metrics:    collector,
		retile:     retile,
		history:    newChangeLog(0),
	}
}

// SetMonitorNames labels monitors in logs and status output.
func (e *Engine) SetMonitorNames(names []string) {
	e.names = append([]string(nil), names...)
}

// Run applies the startup state, then processes notifications in arrival
// order until ctx is cancelled or a fatal error occurs.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.subscribe(ctx, e.logger)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := e.apply(ctx, "Startup"); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrStreamClosed
			}
			if err := e.HandleEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// HandleEvent processes a single notification. Malformed records are logged
// and discarded; every other error is fatal.
func (e *Engine) HandleEvent(ctx context.Context, ev ipc.Event) error {
	if ev.Err != nil {
		e.metrics.RecordMalformed()
		e.logger.Warnf("discarding malformed komorebi notification: %v", ev.Err)
		return nil
	}
	e.metrics.RecordNotification(ev.Kind)
	changed, err := e.tracker.ApplyEvent(ev.State)
	if err != nil {
		return fmt.Errorf("apply %s notification: %w", ev.Kind, err)
	}
	e.logger.Tracef("notification %s (state changed: %t)", ev.Kind, changed)
	return e.apply(ctx, ev.Kind)
}

// pendingChange is one monitor whose desired offset differs from the last
// applied value.
type pendingChange struct {
	monitor  int
	previous layout.OptionalOffset
	decision rules.Decision
}

// apply is the update dispatcher: evaluate every monitor and deliver offsets
// that differ from the last applied value.
func (e *Engine) apply(ctx context.Context, event string) error {
	monitors := make([]MonitorStatus, e.tracker.MonitorCount())
	var (
		plan    layout.Plan
		pending []pendingChange
	)
	for m := range monitors {
		ws, live := e.tracker.Focused(m)
		decision := rules.Explain(e.policies.Policy(m, ws), live.Monocle, live.Windows)
		prev := e.tracker.Applied(m)
		monitors[m] = MonitorStatus{
			Monitor:          m,
			Name:             e.monitorName(m),
			FocusedWorkspace: ws,
			Windows:          live.Windows,
			Monocle:          live.Monocle,
			Desired:          decision.Offset,
			Reason:           decision.String(),
			Applied:          prev,
		}
		if prev.Equal(decision.Offset) {
			continue
		}
		plan.Add(layout.SetOffset(m, decision.Offset))
		pending = append(pending, pendingChange{monitor: m, previous: prev, decision: decision})
	}

	delivered, err := plan.Execute(ctx, e.dispatcher)
	now := time.Now()
	for _, change := range pending[:delivered] {
		m, offset := change.monitor, change.decision.Offset
		e.tracker.MarkApplied(m, offset)
		monitors[m].Applied = layout.Some(offset)
		e.changes++
		e.metrics.RecordOffsetChange(m, offset)
		e.history.record(OffsetChange{
			Timestamp: now,
			Sequence:  e.changes,
			Event:     event,
			Monitor:   m,
			From:      change.previous,
			To:        offset,
			Reason:    change.decision.String(),
			Status:    ChangeStatusApplied,
		})

		e.logger.Infof("offset change #%d", e.changes)
		if change.previous.Set {
			e.logger.Infof("changing monitor %d from %s", m, change.previous.Offset)
		} else {
			e.logger.Infof("no work area offset set previously for monitor %d", m)
		}
		e.logger.Infof("new offset for monitor %d: %s (%s)", m, offset, change.decision)
	}

	var failure error
	if err != nil {
		failed := pending[delivered]
		e.metrics.RecordDispatchError()
		e.history.record(OffsetChange{
			Timestamp: now,
			Event:     event,
			Monitor:   failed.monitor,
			From:      failed.previous,
			To:        failed.decision.Offset,
			Reason:    failed.decision.String(),
			Status:    ChangeStatusError,
			Error:     err.Error(),
		})
		failure = fmt.Errorf("set work area offset for monitor %d: %w", failed.monitor, err)
	}
	if delivered > 0 && e.retile != nil {
		e.retile.Signal()
	}
	e.publish(event, monitors)
	return failure
}

func (e *Engine) monitorName(m int) string {
	if m < len(e.names) {
		return e.names[m]
	}
	return ""
}

func (e *Engine) publish(event string, monitors []MonitorStatus) {
	e.mu.Lock()
	e.status = Status{Updated: time.Now(), LastEvent: event, Monitors: monitors}
	e.mu.Unlock()
}

// Status returns the latest published evaluation.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	st.Monitors = append([]MonitorStatus(nil), st.Monitors...)
	st.History = e.history.snapshot()
	if s, ok := e.retile.(interface{ Delay() time.Duration }); ok {
		st.RetileDelay = s.Delay()
	}
	return st
}

// Policies returns the resolved policy table.
func (e *Engine) Policies() []rules.Entry {
	return e.policies.Entries()
}

// Metrics returns the diagnostic counters.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// LogPolicies writes the resolved table at debug level.
func (e *Engine) LogPolicies() {
	if !e.logger.Enabled(util.LevelDebug) {
		return
	}
	for _, entry := range e.policies.Entries() {
		p := entry.Policy
		e.logger.Debugf("policy monitor %d workspace %d: default %s (%s), monocle %s (%s), %d rules (%s)",
			entry.Monitor, entry.Workspace, p.Default, p.DefaultFrom, p.Monocle, sourceOrNone(p.MonocleFrom), len(p.Rules), sourceOrNone(p.RulesFrom))
	}
}

func sourceOrNone(s rules.Source) string {
	if s == rules.SourceNone {
		return "none"
	}
	return string(s)
}
