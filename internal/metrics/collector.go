package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

// Collector aggregates diagnostic counters for the offset daemon. A nil
// collector ignores every call.
type Collector struct {
	mu       sync.RWMutex
	started  time.Time
	totals   Totals
	monitors map[int]*MonitorMetrics
	last     LastActivity
}

// MonitorMetrics captures per-monitor offset changes.
type MonitorMetrics struct {
	Monitor     int           `json:"monitor"`
	Changes     uint64        `json:"changes"`
	LastOffset  layout.Offset `json:"lastOffset"`
	LastChanged time.Time     `json:"lastChanged,omitempty"`
}

// Totals aggregates counters across the daemon.
type Totals struct {
	OffsetChanges          uint64 `json:"offsetChanges"`
	Retiles                uint64 `json:"retiles"`
	Notifications          uint64 `json:"notifications"`
	MalformedNotifications uint64 `json:"malformedNotifications"`
	DispatchErrors         uint64 `json:"dispatchErrors"`
}

// LastActivity records the most recent notable events.
type LastActivity struct {
	EventKind string    `json:"eventKind,omitempty"`
	Event     time.Time `json:"event,omitempty"`
	Retile    time.Time `json:"retile,omitempty"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Started  time.Time        `json:"started"`
	Totals   Totals           `json:"totals"`
	Last     LastActivity     `json:"last"`
	Monitors []MonitorMetrics `json:"monitors,omitempty"`
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		started:  time.Now(),
		monitors: make(map[int]*MonitorMetrics),
	}
}

// RecordOffsetChange counts a delivered offset and returns the running total.
func (c *Collector) RecordOffsetChange(monitor int, offset layout.Offset) uint64 {
	if c == nil {
		return 0
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals.OffsetChanges++
	m, ok := c.monitors[monitor]
	if !ok {
		m = &MonitorMetrics{Monitor: monitor}
		c.monitors[monitor] = m
	}
	m.Changes++
	m.LastOffset = offset
	m.LastChanged = now
	return c.totals.OffsetChanges
}

// RecordRetile counts a delivered retile.
func (c *Collector) RecordRetile() {
	c.update(func(now time.Time) {
		c.totals.Retiles++
		c.last.Retile = now
	})
}

// RecordNotification counts a decoded notification.
func (c *Collector) RecordNotification(kind string) {
	c.update(func(now time.Time) {
		c.totals.Notifications++
		c.last.EventKind = kind
		c.last.Event = now
	})
}

// RecordMalformed counts a discarded notification line.
func (c *Collector) RecordMalformed() {
	c.update(func(time.Time) {
		c.totals.MalformedNotifications++
	})
}

// RecordDispatchError counts a command that could not be delivered.
func (c *Collector) RecordDispatchError() {
	c.update(func(time.Time) {
		c.totals.DispatchErrors++
	})
}

func (c *Collector) update(mutate func(time.Time)) {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	mutate(now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Started: c.started, Totals: c.totals, Last: c.last}
	if len(c.monitors) == 0 {
		return snap
	}
	snap.Monitors = make([]MonitorMetrics, 0, len(c.monitors))
	for _, m := range c.monitors {
		snap.Monitors = append(snap.Monitors, *m)
	}
	sort.Slice(snap.Monitors, func(i, j int) bool {
		return snap.Monitors[i].Monitor < snap.Monitors[j].Monitor
	})
	return snap
}
