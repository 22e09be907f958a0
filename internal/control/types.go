package control

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/omark96/komorebi-custom-offset/internal/engine"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/rules"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// SocketEnv overrides the control socket location.
	SocketEnv = "KOMOFFSET_CONTROL_SOCKET"

	// Action names supported by the control protocol.
	ActionStatus   = "status"
	ActionPolicies = "policies"
	ActionMetrics  = "metrics"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// StatusResult is the payload of the status action.
type StatusResult = engine.Status

// PoliciesResult lists the resolved policy for every monitor and workspace.
type PoliciesResult struct {
	Policies []rules.Entry `json:"policies"`
}

// MetricsResult is the payload of the metrics action.
type MetricsResult = metrics.Snapshot

// DefaultSocketPath returns the expected location of the komoffset control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv(SocketEnv); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "komoffset", SocketFileName), nil
}
