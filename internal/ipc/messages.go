package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/state"
)

// Message is a komorebi SocketMessage, encoded as {"type":..., "content":...}.
type Message struct {
	Type    string `json:"type"`
	Content any    `json:"content,omitempty"`
}

// SubscribeOptions mirrors komorebi's subscriber options.
type SubscribeOptions struct {
	FilterStateChanges bool `json:"filter_state_changes"`
}

// StateQuery requests a full state snapshot.
func StateQuery() Message {
	return Message{Type: "State"}
}

// MonitorWorkAreaOffset sets the work area offset of a monitor.
func MonitorWorkAreaOffset(monitor int, offset layout.Offset) Message {
	return Message{Type: "MonitorWorkAreaOffset", Content: []any{monitor, offset}}
}

// RetileMessage asks komorebi to recompute layouts.
func RetileMessage() Message {
	return Message{Type: "Retile"}
}

// AddSubscriberSocket registers a named subscriber socket.
func AddSubscriberSocket(name string, opts SubscribeOptions) Message {
	return Message{Type: "AddSubscriberSocketWithOptions", Content: []any{name, opts}}
}

// ErrMalformedNotification marks a notification line that could not be used.
var ErrMalformedNotification = errors.New("malformed komorebi notification")

type ring[T any] struct {
	Elements []T `json:"elements"`
	Focused  int `json:"focused"`
}

type wireState struct {
	Monitors ring[wireMonitor] `json:"monitors"`
}

type wireMonitor struct {
	Name           string              `json:"name"`
	WorkAreaOffset *layout.Offset      `json:"work_area_offset"`
	Workspaces     ring[wireWorkspace] `json:"workspaces"`
}

type wireWorkspace struct {
	Name             *string               `json:"name"`
	Containers       ring[json.RawMessage] `json:"containers"`
	MonocleContainer json.RawMessage       `json:"monocle_container"`
}

type wireEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type wireNotification struct {
	Event *wireEvent `json:"event"`
	State *wireState `json:"state"`
}

// DecodeState parses a komorebi State payload.
func DecodeState(data []byte) (state.Snapshot, error) {
	var ws wireState
	if err := json.Unmarshal(data, &ws); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode state: %w", err)
	}
	return ws.snapshot(), nil
}

// DecodeNotification parses one notification line.
func DecodeNotification(line []byte) (Event, error) {
	var n wireNotification
	if err := json.Unmarshal(line, &n); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if n.State == nil {
		return Event{}, fmt.Errorf("%w: missing state", ErrMalformedNotification)
	}
	return Event{Kind: n.Event.kind(), State: n.State.snapshot()}, nil
}

func (e *wireEvent) kind() string {
	if e == nil || e.Type == "" {
		return "Unknown"
	}
	var inner struct {
		Type string `json:"type"`
	}
	if len(e.Content) > 0 && json.Unmarshal(e.Content, &inner) == nil && inner.Type != "" {
		return e.Type + "/" + inner.Type
	}
	return e.Type
}

func (ws wireState) snapshot() state.Snapshot {
	snap := state.Snapshot{Monitors: make([]state.Monitor, len(ws.Monitors.Elements))}
	for i, m := range ws.Monitors.Elements {
		mon := state.Monitor{
			Name:             m.Name,
			FocusedWorkspace: m.Workspaces.Focused,
			WorkAreaOffset:   m.WorkAreaOffset,
			Workspaces:       make([]state.Workspace, len(m.Workspaces.Elements)),
		}
		for j, w := range m.Workspaces.Elements {
			ws := state.Workspace{
				Windows: len(w.Containers.Elements),
				Monocle: present(w.MonocleContainer),
			}
			if w.Name != nil {
				ws.Name = *w.Name
			}
			mon.Workspaces[j] = ws
		}
		snap.Monitors[i] = mon
	}
	return snap
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
