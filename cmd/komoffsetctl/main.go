package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/omark96/komorebi-custom-offset/internal/control/client"
)

type globalOptions struct {
	socket     string
	timeout    time.Duration
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "komoffsetctl",
		Short:         "Inspect a running komoffset daemon and lint its config",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.socket, "socket", "", "path to komoffset control socket")
	flags.DurationVar(&opts.timeout, "timeout", 3*time.Second, "control request timeout")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print raw JSON payloads")

	root.AddCommand(
		newStatusCmd(opts),
		newPoliciesCmd(opts),
		newMetricsCmd(opts),
		newCheckCmd(),
	)
	return root
}

// dial builds a client and a request context bounded by --timeout.
func (o *globalOptions) dial(parent context.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	cli, err := client.New(o.socket)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create client: %w", err)
	}
	if parent == nil {
		parent = context.Background()
	}
	if o.timeout <= 0 {
		ctx, cancel := context.WithCancel(parent)
		return cli, ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	return cli, ctx, cancel, nil
}
