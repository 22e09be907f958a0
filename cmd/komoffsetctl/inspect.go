package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/omark96/komorebi-custom-offset/internal/control/client"
	"github.com/omark96/komorebi-custom-offset/internal/rules"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the focused workspace and offset of every monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			status, err := cli.Status(ctx, history)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "include recent offset changes")
	return cmd
}

func newPoliciesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Show the resolved policy of every workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			result, err := cli.Policies(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printPolicies(cmd.OutOrStdout(), result.Policies)
			return nil
		},
	}
}

func newMetricsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show daemon counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			snapshot, err := cli.Metrics(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), snapshot)
			}
			printMetrics(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}
}

func printStatus(w io.Writer, status client.Status) {
	printSection(w, "Monitors")
	if len(status.Monitors) == 0 {
		printDim(w, "  no monitors reported yet")
	}
	for _, m := range status.Monitors {
		title := fmt.Sprintf("monitor %d", m.Monitor)
		if m.Name != "" {
			title += " (" + m.Name + ")"
		}
		printSubsection(w, title)
		printLabelValue(w, "workspace", fmt.Sprintf("%d", m.FocusedWorkspace))
		windows := fmt.Sprintf("%d", m.Windows)
		if m.Monocle {
			windows += " (monocle)"
		}
		printLabelValue(w, "windows", windows)
		printLabelValue(w, "desired", m.Reason)
		if m.Applied.Equal(m.Desired) {
			printLabelValueWithColor(w, "applied", m.Applied.String(), successColor)
		} else {
			printLabelValueWithColor(w, "applied", m.Applied.String(), warningColor)
		}
	}
	if status.LastEvent != "" {
		fmt.Fprintln(w)
		printLabelValue(w, "last event", status.LastEvent)
	}
	if status.RetileDelay > 0 {
		printLabelValue(w, "retile delay", status.RetileDelay.String())
	} else {
		printLabelValue(w, "retile delay", "disabled")
	}
	if len(status.History) == 0 {
		return
	}
	printSection(w, "Recent changes")
	for _, change := range status.History {
		line := fmt.Sprintf("  %s monitor %d %s -> %s [%s]", change.Timestamp.Format("15:04:05.000"), change.Monitor, change.From, change.To, change.Event)
		if change.Error != "" {
			_, _ = errorColor.Fprintf(w, "%s: %s\n", line, change.Error)
			continue
		}
		fmt.Fprintln(w, line)
	}
}

func printPolicies(w io.Writer, entries []rules.Entry) {
	printSection(w, "Policies")
	for _, entry := range entries {
		p := entry.Policy
		printSubsection(w, fmt.Sprintf("monitor %d workspace %d", entry.Monitor, entry.Workspace))
		printLabelValue(w, "default", fmt.Sprintf("%s from %s", p.Default, p.DefaultFrom))
		if p.Monocle.Set {
			printLabelValue(w, "monocle", fmt.Sprintf("%s from %s", p.Monocle.Offset, p.MonocleFrom))
		} else {
			printLabelValue(w, "monocle", "unset")
		}
		if len(p.Rules) == 0 {
			printLabelValue(w, "rules", "none")
			continue
		}
		printLabelValue(w, "rules", fmt.Sprintf("%d from %s", len(p.Rules), p.RulesFrom))
		for i, rule := range p.Rules {
			_, _ = dimColor.Fprintf(w, "    [%d] windows <= %d: %s\n", i, rule.Count, rule.Offset)
		}
	}
}

func printMetrics(w io.Writer, snapshot client.Metrics) {
	printSection(w, "Totals")
	t := snapshot.Totals
	printLabelValue(w, "offset changes", fmt.Sprintf("%d", t.OffsetChanges))
	printLabelValue(w, "retiles", fmt.Sprintf("%d", t.Retiles))
	printLabelValue(w, "notifications", fmt.Sprintf("%d", t.Notifications))
	printLabelValue(w, "malformed", fmt.Sprintf("%d", t.MalformedNotifications))
	printLabelValue(w, "dispatch errors", fmt.Sprintf("%d", t.DispatchErrors))
	if !snapshot.Started.IsZero() {
		printLabelValue(w, "started", snapshot.Started.Format("2006-01-02 15:04:05"))
	}
	if len(snapshot.Monitors) == 0 {
		return
	}
	printSection(w, "Monitors")
	for _, m := range snapshot.Monitors {
		printLabelValue(w, fmt.Sprintf("monitor %d", m.Monitor), fmt.Sprintf("%d changes, last %s", m.Changes, m.LastOffset))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
