package engine

import (
	"sync"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

type ChangeStatus string

const (
	ChangeStatusApplied ChangeStatus = "applied"
	ChangeStatusError   ChangeStatus = "error"

	inspectorHistoryLimit = 128
)

// OffsetChange records one attempt to move a monitor to a new offset.
type OffsetChange struct {
	Timestamp time.Time             `json:"timestamp"`
	Sequence  uint64                `json:"sequence"`
	Event     string                `json:"event"`
	Monitor   int                   `json:"monitor"`
	From      layout.OptionalOffset `json:"from"`
	To        layout.Offset         `json:"to"`
	Reason    string                `json:"reason"`
	Status    ChangeStatus          `json:"status"`
	Error     string                `json:"error,omitempty"`
}

// MonitorStatus is the live view of one monitor after the latest evaluation.
type MonitorStatus struct {
	Monitor          int                   `json:"monitor"`
	Name             string                `json:"name,omitempty"`
	FocusedWorkspace int                   `json:"focusedWorkspace"`
	Windows          int                   `json:"windows"`
	Monocle          bool                  `json:"monocle"`
	Desired          layout.Offset         `json:"desired"`
	Reason           string                `json:"reason"`
	Applied          layout.OptionalOffset `json:"applied"`
}

// Status is the engine's published state for inspection.
type Status struct {
	Updated     time.Time       `json:"updated"`
	LastEvent   string          `json:"lastEvent"`
	RetileDelay time.Duration   `json:"retileDelay"`
	Monitors    []MonitorStatus `json:"monitors"`
	History     []OffsetChange  `json:"history,omitempty"`
}

type changeLog struct {
	mu      sync.Mutex
	entries []OffsetChange
	limit   int
}

func newChangeLog(limit int) *changeLog {
	if limit <= 0 {
		limit = inspectorHistoryLimit
	}
	return &changeLog{limit: limit}
}

func (l *changeLog) record(entry OffsetChange) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

func (l *changeLog) snapshot() []OffsetChange {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return append([]OffsetChange(nil), l.entries...)
}
