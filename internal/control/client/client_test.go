package client

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/omark96/komorebi-custom-offset/internal/control"
	"github.com/omark96/komorebi-custom-offset/internal/engine"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/rules"
)

func startTestServer(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "socket")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handler(conn)
	}()
	return path
}

func respond(t *testing.T, action string, resp control.Response) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		var req control.Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Action != action {
			t.Errorf("unexpected action %q", req.Action)
			return
		}
		if err := json.NewEncoder(conn).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestStatusSuccess(t *testing.T) {
	want := engine.Status{
		LastEvent: "FocusChange",
		Monitors: []engine.MonitorStatus{{
			Monitor: 1,
			Windows: 3,
			Desired: layout.Uniform(8),
			Reason:  "default (left=8 top=8 right=8 bottom=8)",
			Applied: layout.Some(layout.Uniform(8)),
		}},
	}
	path := startTestServer(t, respond(t, control.ActionStatus, control.Response{Status: control.StatusOK, Data: want}))
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	got, err := cli.Status(context.Background(), false)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if diff := cmp.Diff(want.Monitors, got.Monitors); diff != "" {
		t.Fatalf("unexpected monitors (-want +got):\n%s", diff)
	}
	if got.LastEvent != "FocusChange" {
		t.Fatalf("unexpected last event %q", got.LastEvent)
	}
}

func TestStatusError(t *testing.T) {
	path := startTestServer(t, respond(t, control.ActionStatus, control.Response{Status: control.StatusError, Error: "boom"}))
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := cli.Status(context.Background(), true); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
}

func TestPoliciesSuccess(t *testing.T) {
	entries := []rules.Entry{{Monitor: 0, Workspace: 1, Policy: rules.Policy{
		Rules:       []rules.Threshold{{Count: 1, Offset: layout.Uniform(20)}},
		RulesFrom:   rules.SourceWorkspace,
		Default:     layout.Uniform(4),
		DefaultFrom: rules.SourceMonitor,
	}}}
	path := startTestServer(t, respond(t, control.ActionPolicies, control.Response{
		Status: control.StatusOK,
		Data:   control.PoliciesResult{Policies: entries},
	}))
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	got, err := cli.Policies(context.Background())
	if err != nil {
		t.Fatalf("Policies returned error: %v", err)
	}
	if diff := cmp.Diff(entries, got.Policies); diff != "" {
		t.Fatalf("unexpected policies (-want +got):\n%s", diff)
	}
}

func TestMetricsSuccess(t *testing.T) {
	path := startTestServer(t, respond(t, control.ActionMetrics, control.Response{
		Status: control.StatusOK,
		Data:   metrics.Snapshot{Totals: metrics.Totals{OffsetChanges: 2, Retiles: 1}},
	}))
	cli, err := New(path)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	snapshot, err := cli.Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics returned error: %v", err)
	}
	if snapshot.Totals.OffsetChanges != 2 || snapshot.Totals.Retiles != 1 {
		t.Fatalf("unexpected totals: %#v", snapshot.Totals)
	}
}

func TestDialFailure(t *testing.T) {
	cli, err := New(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := cli.Metrics(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
}
