package state

import (
	"fmt"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

// Snapshot is the subset of komorebi's reported state that drives offsets.
type Snapshot struct {
	Monitors []Monitor
}

// Monitor describes one monitor in ring order.
type Monitor struct {
	Name             string
	FocusedWorkspace int
	// WorkAreaOffset is the offset komorebi currently applies, nil when unset.
	WorkAreaOffset *layout.Offset
	Workspaces     []Workspace
}

// Workspace describes one workspace on a monitor.
type Workspace struct {
	Name    string
	Windows int
	Monocle bool
}

// Topology is the number of workspaces on each monitor, in monitor order.
type Topology []int

// Topology returns the snapshot's monitor and workspace cardinality.
func (s Snapshot) Topology() Topology {
	t := make(Topology, len(s.Monitors))
	for i, m := range s.Monitors {
		t[i] = len(m.Workspaces)
	}
	return t
}

// Equal reports whether both topologies have identical cardinality.
func (t Topology) Equal(other Topology) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

func (t Topology) String() string {
	return fmt.Sprintf("%d monitors %v", len(t), []int(t))
}

// Validate checks that every monitor has workspaces and a focused index inside them.
func (s Snapshot) Validate() error {
	for i, m := range s.Monitors {
		if len(m.Workspaces) == 0 {
			return fmt.Errorf("monitor %d reports no workspaces", i)
		}
		if m.FocusedWorkspace < 0 || m.FocusedWorkspace >= len(m.Workspaces) {
			return fmt.Errorf("monitor %d focused workspace %d out of range [0,%d)", i, m.FocusedWorkspace, len(m.Workspaces))
		}
	}
	return nil
}
