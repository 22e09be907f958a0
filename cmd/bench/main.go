package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/omark96/komorebi-custom-offset/internal/config"
	"github.com/omark96/komorebi-custom-offset/internal/engine"
	"github.com/omark96/komorebi-custom-offset/internal/ipc"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/state"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

// builtinConfig drives the synthetic stream when no --config is given.
const builtinConfig = `default: {left: 0, top: 0, right: 0, bottom: 0}
monocle: {left: 0, top: 0, right: 0, bottom: 0}
monitors:
  - rules:
      - count: 1
        padding: {left: 600, top: 20, right: 600, bottom: 20}
      - count: 2
        padding: {left: 200, top: 10, right: 200, bottom: 10}
  - default: {left: 10, top: 10, right: 10, bottom: 10}
`

type benchFixture struct {
	Name    string
	Initial state.Snapshot
	Events  []ipc.Event
}

type benchLatencyStats struct {
	Min    float64 `json:"minMs"`
	Mean   float64 `json:"meanMs"`
	Median float64 `json:"medianMs"`
	P95    float64 `json:"p95Ms"`
	Max    float64 `json:"maxMs"`
}

type benchAllocationStats struct {
	Total         uint64  `json:"totalAllocations"`
	PerEvent      float64 `json:"allocationsPerEvent"`
	BytesTotal    uint64  `json:"bytesTotal"`
	BytesPerEvent float64 `json:"bytesPerEvent"`
}

type benchDispatchStats struct {
	Total        int     `json:"total"`
	PerIteration float64 `json:"perIteration"`
	PerEvent     float64 `json:"perEvent"`
}

type benchSummary struct {
	Fixture            string               `json:"fixture"`
	Iterations         int                  `json:"iterations"`
	EventsPerIteration int                  `json:"eventsPerIteration"`
	TotalEvents        int                  `json:"totalEvents"`
	Dispatches         benchDispatchStats   `json:"dispatches"`
	Latency            benchLatencyStats    `json:"latency"`
	Allocations        benchAllocationStats `json:"allocations"`
	TotalDurationMs    float64              `json:"totalDurationMs"`
	EventsPerSecond    float64              `json:"eventsPerSecond"`
}

type benchReport struct {
	Summary     benchSummary `json:"summary"`
	DurationsMs []float64    `json:"durationsMs,omitempty"`
}

// countingDispatcher accepts every command and counts offset changes.
type countingDispatcher struct {
	mu      sync.Mutex
	offsets int
}

func (d *countingDispatcher) SetMonitorOffset(context.Context, int, layout.Offset) error {
	d.mu.Lock()
	d.offsets++
	d.mu.Unlock()
	return nil
}

func (d *countingDispatcher) Retile(context.Context) error { return nil }

func (d *countingDispatcher) Dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offsets
}

// nopSignaler stands in for the retile scheduler so replay never sleeps.
type nopSignaler struct{}

func (nopSignaler) Signal() {}

type benchOptions struct {
	configPath  string
	fixturePath string
	iterations  int
	logLevel    string
	outputPath  string
	human       bool
	durations   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitErr(err)
	}
}

func newRootCmd() *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:           "bench",
		Short:         "Replay a komorebi notification stream through the offset engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to config (default: built-in)")
	flags.StringVar(&opts.fixturePath, "fixture", "", "JSON lines fixture: state query response, then notifications (default: synthetic)")
	flags.IntVar(&opts.iterations, "iterations", 10, "number of times to replay the fixture")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (trace|debug|info|warn|error)")
	flags.StringVar(&opts.outputPath, "output", "-", "write JSON report to file ('-' for stdout)")
	flags.BoolVar(&opts.human, "human", false, "print a tabular summary alongside the JSON output")
	flags.BoolVar(&opts.durations, "durations", false, "include every per-event duration in the report")
	return cmd
}

func runBench(ctx context.Context, opts benchOptions, stdout io.Writer) error {
	if opts.iterations <= 0 {
		return errors.New("iterations must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := util.NewLogger(util.ParseLogLevel(opts.logLevel))

	var (
		cfg *config.Config
		err error
	)
	if opts.configPath == "" {
		cfg, err = config.Parse([]byte(builtinConfig))
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fixture := defaultFixture()
	if opts.fixturePath != "" {
		fixture, err = loadFixture(opts.fixturePath)
		if err != nil {
			return fmt.Errorf("load fixture: %w", err)
		}
	}
	if len(fixture.Events) == 0 {
		return errors.New("fixture contains no events")
	}

	runtime.GC()
	var startMem runtime.MemStats
	runtime.ReadMemStats(&startMem)

	durations := make([]time.Duration, 0, len(fixture.Events)*opts.iterations)
	dispatches := 0
	for i := 0; i < opts.iterations; i++ {
		eventDurations, count, err := replayIteration(ctx, fixture, cfg, logger)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i+1, err)
		}
		durations = append(durations, eventDurations...)
		dispatches += count
	}

	runtime.GC()
	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	report := buildReport(fixture, opts.iterations, durations, dispatches, startMem, endMem)
	if !opts.durations {
		report.DurationsMs = nil
	}
	if err := writeReport(report, opts.outputPath, stdout); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if opts.human {
		return printHumanSummary(report.Summary, stdout)
	}
	return nil
}

func replayIteration(ctx context.Context, fixture benchFixture, cfg *config.Config, logger *util.Logger) ([]time.Duration, int, error) {
	source := staticState(fixture.Initial)
	policies, tracker, _, err := engine.Bootstrap(ctx, source, cfg)
	if err != nil {
		return nil, 0, err
	}
	dispatcher := &countingDispatcher{}
	subscribe := func(context.Context, *util.Logger) (<-chan ipc.Event, error) {
		return nil, errors.New("replay does not subscribe")
	}
	eng := engine.New(dispatcher, subscribe, logger, policies, tracker, metrics.NewCollector(), nopSignaler{})

	durations := make([]time.Duration, 0, len(fixture.Events))
	for _, ev := range fixture.Events {
		start := time.Now()
		if err := eng.HandleEvent(ctx, ev); err != nil {
			return nil, 0, fmt.Errorf("apply %s: %w", ev.Kind, err)
		}
		durations = append(durations, time.Since(start))
	}
	return durations, dispatcher.Dispatches(), nil
}

type staticState state.Snapshot

func (s staticState) State(context.Context) (state.Snapshot, error) {
	return state.Snapshot(s), nil
}

func buildReport(fixture benchFixture, iterations int, durations []time.Duration, dispatches int, start, end runtime.MemStats) benchReport {
	latency, total := buildLatencyStats(durations)
	events := len(durations)
	allocs := end.Mallocs - start.Mallocs
	bytesAllocated := end.TotalAlloc - start.TotalAlloc
	report := benchReport{
		Summary: benchSummary{
			Fixture:            fixture.Name,
			Iterations:         iterations,
			EventsPerIteration: len(fixture.Events),
			TotalEvents:        events,
			Dispatches: benchDispatchStats{
				Total:        dispatches,
				PerIteration: safeDivide(dispatches, iterations),
				PerEvent:     safeDivide(dispatches, events),
			},
			Latency: latency,
			Allocations: benchAllocationStats{
				Total:         allocs,
				PerEvent:      float64(allocs) / float64(max(events, 1)),
				BytesTotal:    bytesAllocated,
				BytesPerEvent: float64(bytesAllocated) / float64(max(events, 1)),
			},
			TotalDurationMs: toMillis(total),
			EventsPerSecond: eventsPerSecond(total, events),
		},
		DurationsMs: make([]float64, len(durations)),
	}
	for i, d := range durations {
		report.DurationsMs[i] = toMillis(d)
	}
	return report
}

func buildLatencyStats(durations []time.Duration) (benchLatencyStats, time.Duration) {
	if len(durations) == 0 {
		return benchLatencyStats{}, 0
	}
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return benchLatencyStats{
		Min:    toMillis(sorted[0]),
		Mean:   toMillis(total / time.Duration(len(sorted))),
		Median: toMillis(percentile(sorted, 0.5)),
		P95:    toMillis(percentile(sorted, 0.95)),
		Max:    toMillis(sorted[len(sorted)-1]),
	}, total
}

func safeDivide(total int, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func writeReport(report benchReport, outputPath string, stdout io.Writer) error {
	w := stdout
	switch strings.TrimSpace(outputPath) {
	case "", "-":
	default:
		dir := filepath.Dir(outputPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create report dir: %w", err)
			}
		}
		out, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printHumanSummary(summary benchSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Fixture:\t%s\n", summary.Fixture)
	fmt.Fprintf(tw, "Iterations:\t%d\n", summary.Iterations)
	fmt.Fprintf(tw, "Events/iteration:\t%d\n", summary.EventsPerIteration)
	fmt.Fprintf(tw, "Offset changes:\t%d (%.2f / iter, %.2f / event)\n", summary.Dispatches.Total, summary.Dispatches.PerIteration, summary.Dispatches.PerEvent)
	l := summary.Latency
	fmt.Fprintf(tw, "Latency (ms):\tmin %.4f | mean %.4f | median %.4f | p95 %.4f | max %.4f\n", l.Min, l.Mean, l.Median, l.P95, l.Max)
	fmt.Fprintf(tw, "Allocations:\t%d total (%.2f / event)\n", summary.Allocations.Total, summary.Allocations.PerEvent)
	fmt.Fprintf(tw, "Events/sec:\t%.2f\n", summary.EventsPerSecond)
	return tw.Flush()
}

func eventsPerSecond(total time.Duration, events int) float64 {
	if total <= 0 || events == 0 {
		return 0
	}
	return float64(events) / total.Seconds()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(p*float64(len(sorted)-1) + 0.5)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// loadFixture reads a JSON lines capture. The first record is a State query
// response; every following record is a subscriber notification.
func loadFixture(path string) (benchFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return benchFixture{}, err
	}
	fixture := benchFixture{Name: filepath.Base(path)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	seeded := false
	line := 0
	for scanner.Scan() {
		line++
		record := bytes.TrimSpace(scanner.Bytes())
		if len(record) == 0 {
			continue
		}
		if !seeded {
			fixture.Initial, err = ipc.DecodeState(record)
			if err != nil {
				return benchFixture{}, fmt.Errorf("line %d: %w", line, err)
			}
			seeded = true
			continue
		}
		ev, err := ipc.DecodeNotification(record)
		if err != nil {
			return benchFixture{}, fmt.Errorf("line %d: %w", line, err)
		}
		fixture.Events = append(fixture.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return benchFixture{}, err
	}
	if !seeded {
		return benchFixture{}, errors.New("fixture is empty")
	}
	return fixture, nil
}

// defaultFixture cycles window counts and monocle across two monitors with
// three workspaces each.
func defaultFixture() benchFixture {
	snapshot := func(step int) state.Snapshot {
		snap := state.Snapshot{Monitors: make([]state.Monitor, 2)}
		for m := range snap.Monitors {
			workspaces := make([]state.Workspace, 3)
			for w := range workspaces {
				workspaces[w] = state.Workspace{
					Windows: (step + m + w) % 5,
					Monocle: (step+w)%7 == 0,
				}
			}
			snap.Monitors[m] = state.Monitor{FocusedWorkspace: (step / 3) % 3, Workspaces: workspaces}
		}
		return snap
	}
	fixture := benchFixture{Name: "synthetic", Initial: snapshot(0)}
	kinds := []string{"FocusChange", "Manage", "Unmanage", "ToggleMonocle", "FocusWorkspaceNumber"}
	for step := 1; step <= 200; step++ {
		fixture.Events = append(fixture.Events, ipc.Event{
			Kind:  kinds[step%len(kinds)],
			State: snapshot(step),
		})
	}
	return fixture
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
