package control

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/omark96/komorebi-custom-offset/internal/engine"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/rules"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

type fakeBackend struct {
	status   engine.Status
	policies []rules.Entry
	metrics  metrics.Snapshot
}

func (f fakeBackend) Status() engine.Status     { return f.status }
func (f fakeBackend) Policies() []rules.Entry   { return f.policies }
func (f fakeBackend) Metrics() metrics.Snapshot { return f.metrics }

func roundTrip(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var (
		wg   sync.WaitGroup
		resp Response
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := json.NewEncoder(clientConn).Encode(req); err != nil {
			t.Errorf("encode request: %v", err)
			return
		}
		if err := json.NewDecoder(clientConn).Decode(&resp); err != nil {
			t.Errorf("decode response: %v", err)
		}
	}()

	srv.handle(serverConn)
	wg.Wait()
	return resp
}

func newTestServer(t *testing.T, backend Backend) *Server {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	srv, err := NewServer(backend, logger, filepath.Join(t.TempDir(), SocketFileName))
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return srv
}

func TestHandleStatusOmitsHistoryOnRequest(t *testing.T) {
	backend := fakeBackend{status: engine.Status{
		LastEvent: "FocusChange",
		Monitors:  []engine.MonitorStatus{{Monitor: 0, Windows: 2, Desired: layout.Uniform(5)}},
		History:   []engine.OffsetChange{{Monitor: 0, To: layout.Uniform(5), Status: engine.ChangeStatusApplied}},
	}}
	srv := newTestServer(t, backend)

	resp := roundTrip(t, srv, Request{Action: ActionStatus, Params: map[string]any{"history": false}})
	if resp.Status != StatusOK {
		t.Fatalf("expected ok status, got %s (error=%s)", resp.Status, resp.Error)
	}
	data, _ := resp.Data.(map[string]any)
	if data["lastEvent"] != "FocusChange" {
		t.Fatalf("unexpected lastEvent in %#v", data)
	}
	if _, ok := data["history"]; ok {
		t.Fatalf("expected history to be omitted, got %#v", data["history"])
	}

	resp = roundTrip(t, srv, Request{Action: ActionStatus})
	data, _ = resp.Data.(map[string]any)
	if history, _ := data["history"].([]any); len(history) != 1 {
		t.Fatalf("expected one history entry, got %#v", data["history"])
	}
}

func TestHandleRejectsUnknownAction(t *testing.T) {
	srv := newTestServer(t, fakeBackend{})
	resp := roundTrip(t, srv, Request{Action: "reload"})
	if resp.Status != StatusError || resp.Error != `unknown action "reload"` {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestServeAnswersOverSocket(t *testing.T) {
	backend := fakeBackend{
		policies: []rules.Entry{{Monitor: 0, Workspace: 0, Policy: rules.Policy{
			Default:     layout.Uniform(3),
			DefaultFrom: rules.SourceGlobal,
		}}},
		metrics: metrics.Snapshot{Totals: metrics.Totals{OffsetChanges: 4}},
	}
	srv := newTestServer(t, backend)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var conn net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		var err error
		conn, err = net.Dial("unix", srv.SocketPath())
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial control socket: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := json.NewEncoder(conn).Encode(Request{Action: ActionPolicies}); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	var resp struct {
		Status string         `json:"status"`
		Data   PoliciesResult `json:"data"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	conn.Close()
	if diff := cmp.Diff(backend.policies, resp.Data.Policies); diff != "" {
		t.Fatalf("unexpected policies (-want +got):\n%s", diff)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestDefaultSocketPathHonoursEnv(t *testing.T) {
	t.Setenv(SocketEnv, "/tmp/custom.sock")
	path, err := DefaultSocketPath()
	if err != nil || path != "/tmp/custom.sock" {
		t.Fatalf("expected env override, got %q (%v)", path, err)
	}
	t.Setenv(SocketEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	path, err = DefaultSocketPath()
	if err != nil || path != filepath.Join("/run/user/1000", "komoffset", SocketFileName) {
		t.Fatalf("unexpected default path %q (%v)", path, err)
	}
}
