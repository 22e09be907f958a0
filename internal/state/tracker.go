package state

import (
	"errors"
	"fmt"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

var (
	// ErrTopologyChanged is returned when a notification reports a different
	// number of monitors or workspaces than the startup snapshot.
	ErrTopologyChanged = errors.New("window manager topology changed; restart to resynchronize")
	// ErrNotSeeded is returned when events arrive before the startup snapshot.
	ErrNotSeeded = errors.New("tracker has not been seeded")
	// ErrAlreadySeeded is returned when ApplySnapshot is called twice.
	ErrAlreadySeeded = errors.New("tracker already seeded")
)

// WorkspaceState is the live view of one workspace.
type WorkspaceState struct {
	Windows int  `json:"windows"`
	Monocle bool `json:"monocle"`
}

// MonitorState is the live view of one monitor.
type MonitorState struct {
	FocusedWorkspace int                   `json:"focusedWorkspace"`
	Applied          layout.OptionalOffset `json:"applied"`
	Workspaces       []WorkspaceState      `json:"workspaces"`
}

// Tracker mirrors komorebi state across notifications. It has a single
// writer, the notification loop, and is not safe for concurrent use.
type Tracker struct {
	adoptOffsets bool
	topology     Topology
	monitors     []MonitorState
}

// NewTracker returns an unseeded tracker. When adoptOffsets is set the
// startup snapshot's work area offsets become the initial applied offsets.
func NewTracker(adoptOffsets bool) *Tracker {
	return &Tracker{adoptOffsets: adoptOffsets}
}

// ApplySnapshot seeds the tracker from the startup snapshot.
func (t *Tracker) ApplySnapshot(s Snapshot) error {
	if t.monitors != nil {
		return ErrAlreadySeeded
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	t.topology = s.Topology()
	t.monitors = make([]MonitorState, len(s.Monitors))
	for i, m := range s.Monitors {
		ms := MonitorState{
			FocusedWorkspace: m.FocusedWorkspace,
			Workspaces:       make([]WorkspaceState, len(m.Workspaces)),
		}
		if t.adoptOffsets && m.WorkAreaOffset != nil {
			ms.Applied = layout.Some(*m.WorkAreaOffset)
		}
		for j, ws := range m.Workspaces {
			ms.Workspaces[j] = WorkspaceState{Windows: ws.Windows, Monocle: ws.Monocle}
		}
		t.monitors[i] = ms
	}
	return nil
}

// ApplyEvent updates focus, window counts and monocle flags from a
// notification snapshot. It reports whether any tracked field changed.
// Applied offsets are never touched.
func (t *Tracker) ApplyEvent(s Snapshot) (bool, error) {
	if t.monitors == nil {
		return false, ErrNotSeeded
	}
	if got := s.Topology(); !got.Equal(t.topology) {
		return false, fmt.Errorf("%w: started with %s, now %s", ErrTopologyChanged, t.topology, got)
	}
	if err := s.Validate(); err != nil {
		return false, err
	}
	changed := false
	for i, m := range s.Monitors {
		ms := &t.monitors[i]
		if ms.FocusedWorkspace != m.FocusedWorkspace {
			ms.FocusedWorkspace = m.FocusedWorkspace
			changed = true
		}
		for j, ws := range m.Workspaces {
			next := WorkspaceState{Windows: ws.Windows, Monocle: ws.Monocle}
			if ms.Workspaces[j] != next {
				ms.Workspaces[j] = next
				changed = true
			}
		}
	}
	return changed, nil
}

// Topology returns the cardinality recorded at startup.
func (t *Tracker) Topology() Topology {
	return append(Topology(nil), t.topology...)
}

// MonitorCount returns the number of tracked monitors.
func (t *Tracker) MonitorCount() int {
	return len(t.monitors)
}

// Focused returns the focused workspace index and its live state.
func (t *Tracker) Focused(monitor int) (int, WorkspaceState) {
	ms := t.monitors[monitor]
	return ms.FocusedWorkspace, ms.Workspaces[ms.FocusedWorkspace]
}

// Applied returns the last offset confirmed as delivered for monitor.
func (t *Tracker) Applied(monitor int) layout.OptionalOffset {
	return t.monitors[monitor].Applied
}

// MarkApplied records a delivered offset.
func (t *Tracker) MarkApplied(monitor int, offset layout.Offset) {
	t.monitors[monitor].Applied = layout.Some(offset)
}

// Snapshot returns a deep copy of the tracked monitors.
func (t *Tracker) Snapshot() []MonitorState {
	out := make([]MonitorState, len(t.monitors))
	for i, ms := range t.monitors {
		out[i] = ms
		out[i].Workspaces = append([]WorkspaceState(nil), ms.Workspaces...)
	}
	return out
}
