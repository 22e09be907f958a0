package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/omark96/komorebi-custom-offset/internal/state"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

const maxNotificationSize = 16 << 20

// Event is one notification record. Err is set, and State empty, when the
// line could not be decoded.
type Event struct {
	Kind  string
	State state.Snapshot
	Err   error
}

// Subscribe listens on a named subscriber socket in the komorebi data
// directory, registers it with komorebi, and streams notifications in arrival
// order until ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, logger *util.Logger, name string, opts SubscribeOptions) (<-chan Event, error) {
	path := filepath.Join(c.dir, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale subscriber socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on subscriber socket: %w", err)
	}
	if err := c.send(ctx, AddSubscriberSocket(name, opts)); err != nil {
		listener.Close()
		os.Remove(path)
		return nil, fmt.Errorf("register subscriber: %w", err)
	}
	logger.Debugf("subscribed to komorebi notifications on %s", path)

	events := make(chan Event)
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	go func() {
		var wg sync.WaitGroup
		defer func() {
			stop()
			listener.Close()
			wg.Wait()
			os.Remove(path)
			close(events)
		}()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
					logger.Errorf("subscriber accept: %v", err)
				}
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				streamLines(ctx, logger, conn, events)
			}()
		}
	}()
	return events, nil
}

func streamLines(ctx context.Context, logger *util.Logger, conn net.Conn, events chan<- Event) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxNotificationSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := DecodeNotification(line)
		if err != nil {
			ev = Event{Err: err}
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		logger.Warnf("notification stream error: %v", err)
	}
}
