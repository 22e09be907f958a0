package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/omark96/komorebi-custom-offset/internal/config"
	"github.com/omark96/komorebi-custom-offset/internal/engine"
	"github.com/omark96/komorebi-custom-offset/internal/ipc"
	"github.com/omark96/komorebi-custom-offset/internal/rules"
)

type checkOptions struct {
	configPath  string
	live        bool
	komorebiDir string
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file",
		Long: `check lints a configuration file and reports every issue it finds.

With --live it also queries the running komorebi instance and verifies that
the config defines an entry for every monitor and workspace komorebi reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var src engine.StateSource
			if opts.live {
				komorebi, err := ipc.NewClient(opts.komorebiDir)
				if err != nil {
					return fmt.Errorf("locate komorebi: %w", err)
				}
				src = komorebi
			}
			return runCheck(cmd.Context(), opts.configPath, src, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to configuration file")
	cmd.Flags().BoolVar(&opts.live, "live", false, "also check the config against komorebi's current topology")
	cmd.Flags().StringVar(&opts.komorebiDir, "komorebi-dir", "", "komorebi data directory for --live")
	return cmd
}

// runCheck lints path and, when src is non-nil, resolves policies against the
// topology src reports.
func runCheck(ctx context.Context, path string, src engine.StateSource, stdout, stderr io.Writer) error {
	if path == "" {
		return errors.New("check requires --config <path>")
	}
	lintErrs, err := config.LintFile(path)
	if err != nil {
		return err
	}
	if len(lintErrs) > 0 {
		fmt.Fprintf(stderr, "Configuration has %d issue(s):\n", len(lintErrs))
		missingDefault := false
		for _, lintErr := range lintErrs {
			fmt.Fprintf(stderr, "- %s\n", lintErr.Error())
			missingDefault = missingDefault || config.IsMissingDefault(lintErr)
		}
		if missingDefault {
			fmt.Fprintln(stderr, "hint: add a top-level default, e.g. `default: {left: 0, top: 0, right: 0, bottom: 0}`")
		}
		return errors.New("configuration validation failed")
	}
	if src == nil {
		printSuccess(stdout, "Configuration OK")
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	table, _, _, err := engine.Bootstrap(ctx, src, cfg)
	if err != nil {
		if rules.IsConfigError(err) {
			printError(stderr, err.Error())
			return errors.New("configuration does not match komorebi's topology")
		}
		return err
	}
	printSuccess(stdout, fmt.Sprintf("Configuration OK for %d monitor(s), %d workspace policies", len(table.Topology()), len(table.Entries())))
	return nil
}
