package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"time"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/state"
)

// defaultTimeout bounds a request when the caller's context has no deadline.
const defaultTimeout = 5 * time.Second

// Client talks to komorebi over its command socket.
type Client struct {
	dir string
}

// NewClient returns a client for the komorebi data directory dir. An empty dir
// uses DataDir.
func NewClient(dir string) (*Client, error) {
	if dir == "" {
		var err error
		dir, err = DataDir()
		if err != nil {
			return nil, err
		}
	}
	return &Client{dir: dir}, nil
}

// SocketPath returns the command socket location.
func (c *Client) SocketPath() string {
	return filepath.Join(c.dir, SocketFileName)
}

// State queries a full state snapshot.
func (c *Client) State(ctx context.Context) (state.Snapshot, error) {
	data, err := c.query(ctx, StateQuery())
	if err != nil {
		return state.Snapshot{}, err
	}
	return DecodeState(data)
}

// SetMonitorOffset delivers a work area offset for monitor.
func (c *Client) SetMonitorOffset(ctx context.Context, monitor int, offset layout.Offset) error {
	return c.send(ctx, MonitorWorkAreaOffset(monitor, offset))
}

// Retile asks komorebi to recompute layouts.
func (c *Client) Retile(ctx context.Context) error {
	return c.send(ctx, RetileMessage())
}

func (c *Client) dial(ctx context.Context) (net.Conn, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.SocketPath())
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("connect komorebi socket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, cancel, nil
}

func (c *Client) send(ctx context.Context, msg Message) error {
	conn, cancel, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) query(ctx context.Context, msg Message) ([]byte, error) {
	conn, cancel, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return nil, fmt.Errorf("write %s: %w", msg.Type, err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", msg.Type, err)
	}
	return data, nil
}

var _ layout.Dispatcher = (*Client)(nil)
