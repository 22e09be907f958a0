package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

const runningConfig = `default: {left: 0, top: 0, right: 0, bottom: 0}
monitors:
  - rules:
      - count: 1
        padding: {left: 400, top: 0, right: 400, bottom: 0}
`

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newTestChecker(t *testing.T) (*configChecker, string, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, runningConfig)
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelInfo, &logs)
	return newConfigChecker(path, []byte(runningConfig), logger), path, &logs
}

func TestCheckWarnsRestartWithDiff(t *testing.T) {
	checker, path, logs := newTestChecker(t)
	writeConfig(t, path, runningConfig+"offsetDelayMs: 250\n")

	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "restart komoffset to apply") {
		t.Fatalf("expected restart hint, got %q", out)
	}
	if !strings.Contains(out, "offsetDelayMs: 250") {
		t.Fatalf("expected added line in diff, got %q", out)
	}
}

func TestCheckReportsLintIssues(t *testing.T) {
	checker, path, logs := newTestChecker(t)
	writeConfig(t, path, "offsetDelayMs: -5\n")

	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "failed validation with 2 issue(s)") {
		t.Fatalf("expected lint summary, got %q", out)
	}
	if strings.Contains(out, "restart komoffset") {
		t.Fatalf("unexpected restart hint for invalid config: %q", out)
	}
}

func TestCheckIgnoresUnchangedContent(t *testing.T) {
	checker, _, logs := newTestChecker(t)
	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no output for unchanged config, got %q", logs.String())
	}
}

func TestRelevantFiltersOtherFilesAndOps(t *testing.T) {
	target := filepath.Join("/cfg", "config.yaml")
	cases := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: target, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: target, Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: target, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: filepath.Join("/cfg", "other.yaml"), Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := relevant(tc.event, target); got != tc.want {
			t.Fatalf("relevant(%s) = %t, want %t", tc.event, got, tc.want)
		}
	}
}

func TestRootCommandDefaults(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "log-level", "dry-run", "komorebi-dir", "subscriber-name", "control-socket", "watch-config"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("missing flag %q", name)
		}
	}
	if got := cmd.Flags().Lookup("subscriber-name").DefValue; got != "komoffset.sock" {
		t.Fatalf("unexpected subscriber default %q", got)
	}
}

func TestLogDryRunSummary(t *testing.T) {
	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelInfo, &logs)
	dry := &layout.DryRun{}
	ctx := context.Background()
	_ = dry.SetMonitorOffset(ctx, 0, layout.Uniform(10))
	_ = dry.SetMonitorOffset(ctx, 1, layout.Uniform(20))
	_ = dry.Retile(ctx)

	logDryRunSummary(logger, dry.Commands)
	if !strings.Contains(logs.String(), "dry-run recorded 2 offset change(s) and 1 retile(s)") {
		t.Fatalf("unexpected summary %q", logs.String())
	}
}
