package layout

import (
	"context"
	"sync"
)

// Logf matches the printf-style methods on util.Logger.
type Logf func(format string, args ...interface{})

// DryRun records commands and logs them instead of delivering them.
type DryRun struct {
	Log Logf

	mu   sync.Mutex
	sent []Command
}

func (d *DryRun) SetMonitorOffset(_ context.Context, monitor int, offset Offset) error {
	d.record(SetOffset(monitor, offset))
	return nil
}

func (d *DryRun) Retile(context.Context) error {
	d.record(Retile())
	return nil
}

// Commands returns a copy of everything recorded so far.
func (d *DryRun) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.sent...)
}

func (d *DryRun) record(cmd Command) {
	d.mu.Lock()
	d.sent = append(d.sent, cmd)
	d.mu.Unlock()
	if d.Log != nil {
		d.Log("dry-run: %s", cmd)
	}
}

var _ Dispatcher = (*DryRun)(nil)
