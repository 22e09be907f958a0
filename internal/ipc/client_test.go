package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

func TestDataDirOverride(t *testing.T) {
	dir := withDataDir(t)
	got, err := DataDir()
	if err != nil || got != dir {
		t.Fatalf("DataDir() = %q, %v; want %q", got, err, dir)
	}
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.SocketPath() != filepath.Join(dir, SocketFileName) {
		t.Fatalf("unexpected socket path %q", c.SocketPath())
	}
}

func TestClientQueriesStateAndSendsCommands(t *testing.T) {
	dir := withDataDir(t)
	fake := startFakeKomorebi(t, dir, sampleState)
	c, err := NewClient(dir)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	snap, err := c.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(snap.Monitors) != 2 || snap.Monitors[0].FocusedWorkspace != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if err := c.SetMonitorOffset(ctx, 1, layout.Uniform(4)); err != nil {
		t.Fatalf("SetMonitorOffset: %v", err)
	}
	if err := c.Retile(ctx); err != nil {
		t.Fatalf("Retile: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(fake.received()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	var kinds []string
	for _, msg := range fake.received() {
		kinds = append(kinds, msg.Type)
	}
	if diff := cmp.Diff([]string{"State", "MonitorWorkAreaOffset", "Retile"}, kinds); diff != "" {
		t.Fatalf("received messages mismatch (-want +got):\n%s", diff)
	}
	content, ok := fake.received()[1].Content.([]any)
	if !ok || len(content) != 2 || content[0].(float64) != 1 {
		t.Fatalf("unexpected offset content %#v", fake.received()[1].Content)
	}
}

func TestClientDeliveryFailure(t *testing.T) {
	c, err := NewClient(t.TempDir())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Retile(context.Background()); err == nil {
		t.Fatalf("expected error when komorebi is not listening")
	}
	if _, err := c.State(context.Background()); err == nil {
		t.Fatalf("expected error when komorebi is not listening")
	}
}
