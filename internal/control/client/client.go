package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/control"
)

const (
	// defaultTimeout is used when the caller does not provide a context deadline.
	defaultTimeout = 3 * time.Second
)

// Client talks to the running komoffset daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// Status mirrors the daemon's live per-monitor evaluation.
	Status = control.StatusResult
	// Policies lists every resolved policy.
	Policies = control.PoliciesResult
	// Metrics mirrors the daemon's diagnostic counters.
	Metrics = control.MetricsResult
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the latest evaluation and, when history is true, the
// recent offset change log.
func (c *Client) Status(ctx context.Context, history bool) (Status, error) {
	var status Status
	req := control.Request{Action: control.ActionStatus, Params: map[string]any{"history": history}}
	if err := c.do(ctx, req, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Policies retrieves the resolved policy table.
func (c *Client) Policies(ctx context.Context) (Policies, error) {
	var result Policies
	if err := c.do(ctx, control.Request{Action: control.ActionPolicies}, &result); err != nil {
		return Policies{}, err
	}
	return result, nil
}

// Metrics retrieves the daemon's counters.
func (c *Client) Metrics(ctx context.Context) (Metrics, error) {
	var snapshot Metrics
	if err := c.do(ctx, control.Request{Action: control.ActionMetrics}, &snapshot); err != nil {
		return Metrics{}, err
	}
	return snapshot, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp struct {
		Status string          `json:"status"`
		Error  string          `json:"error,omitempty"`
		Data   json.RawMessage `json:"data,omitempty"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
