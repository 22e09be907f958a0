package layout

import (
	"context"
	"errors"
	"fmt"
)

// Dispatcher delivers commands to the window manager.
type Dispatcher interface {
	SetMonitorOffset(ctx context.Context, monitor int, offset Offset) error
	Retile(ctx context.Context) error
}

// CommandKind identifies an outbound window manager command.
type CommandKind string

const (
	CommandSetMonitorOffset CommandKind = "MonitorWorkAreaOffset"
	CommandRetile           CommandKind = "Retile"
)

// Command is a single outbound request.
type Command struct {
	Kind    CommandKind `json:"kind"`
	Monitor int         `json:"monitor,omitempty"`
	Offset  Offset      `json:"offset,omitempty"`
}

// SetOffset builds a MonitorWorkAreaOffset command.
func SetOffset(monitor int, offset Offset) Command {
	return Command{Kind: CommandSetMonitorOffset, Monitor: monitor, Offset: offset}
}

// Retile builds a Retile command.
func Retile() Command {
	return Command{Kind: CommandRetile}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandSetMonitorOffset:
		return fmt.Sprintf("%s monitor=%d %s", c.Kind, c.Monitor, c.Offset)
	default:
		return string(c.Kind)
	}
}

// ErrUnknownCommand is returned when a command kind cannot be dispatched.
var ErrUnknownCommand = errors.New("unknown command kind")

// Send delivers a single command through d.
func Send(ctx context.Context, d Dispatcher, cmd Command) error {
	switch cmd.Kind {
	case CommandSetMonitorOffset:
		return d.SetMonitorOffset(ctx, cmd.Monitor, cmd.Offset)
	case CommandRetile:
		return d.Retile(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}

// Plan is a collection of sequential commands.
type Plan struct {
	Commands []Command
}

// Add appends a command.
func (p *Plan) Add(cmd Command) {
	p.Commands = append(p.Commands, cmd)
}

// Execute sends every command in order and stops at the first failure.
// It returns the number of commands that were delivered.
func (p Plan) Execute(ctx context.Context, d Dispatcher) (int, error) {
	for i, cmd := range p.Commands {
		if err := Send(ctx, d, cmd); err != nil {
			return i, fmt.Errorf("%s: %w", cmd, err)
		}
	}
	return len(p.Commands), nil
}
