package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omark96/komorebi-custom-offset/internal/config"
	"github.com/omark96/komorebi-custom-offset/internal/control"
	"github.com/omark96/komorebi-custom-offset/internal/debounce"
	"github.com/omark96/komorebi-custom-offset/internal/engine"
	"github.com/omark96/komorebi-custom-offset/internal/ipc"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

type options struct {
	configPath     string
	logLevel       string
	dryRun         bool
	komorebiDir    string
	subscriberName string
	controlSocket  string
	watch          bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitErr(err)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "komoffset",
		Short:         "Adjust komorebi work area offsets by workspace window count",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to YAML or JSON config")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "log commands instead of sending them to komorebi")
	flags.StringVar(&opts.komorebiDir, "komorebi-dir", "", "komorebi data directory (default %LOCALAPPDATA%\\komorebi)")
	flags.StringVar(&opts.subscriberName, "subscriber-name", ipc.DefaultSubscriberName, "socket name komorebi pushes notifications to")
	flags.StringVar(&opts.controlSocket, "control-socket", "", "control socket path (default $"+control.SocketEnv+" or the runtime dir)")
	flags.BoolVar(&opts.watch, "watch-config", true, "warn when the config file changes on disk")
	return cmd
}

func run(parent context.Context, opts options) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := util.NewLogger(util.ParseLogLevel(opts.logLevel))

	raw, err := os.ReadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, issue := range config.UnknownKeys(raw) {
		logger.Warnf("config: %v", issue)
	}

	komorebi, err := ipc.NewClient(opts.komorebiDir)
	if err != nil {
		return fmt.Errorf("locate komorebi: %w", err)
	}
	logger.Debugf("using komorebi socket %s", komorebi.SocketPath())

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	policies, tracker, names, err := engine.Bootstrap(ctx, komorebi, cfg)
	if err != nil {
		return err
	}

	var dispatcher layout.Dispatcher = komorebi
	if opts.dryRun {
		dry := &layout.DryRun{Log: logger.Infof}
		dispatcher = dry
		logger.Infof("dry-run enabled; commands will be logged, not sent")
		defer logDryRunSummary(logger, dry.Commands)
	}

	collector := metrics.NewCollector()
	errs := make(chan error, 4)

	var retile engine.Signaler
	if delay := cfg.RetileDelay(); delay > 0 {
		sched := debounce.New("retile", delay, engine.RetileAction(dispatcher, logger, collector), logger)
		retile = sched
		go func() { errs <- sched.Run(ctx) }()
		logger.Infof("retiling %s after the last offset change", delay)
	} else {
		logger.Infof("retiling disabled")
	}

	subscribe := func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error) {
		return komorebi.Subscribe(ctx, logger, opts.subscriberName, ipc.SubscribeOptions{FilterStateChanges: true})
	}
	eng := engine.New(dispatcher, subscribe, logger, policies, tracker, collector, retile)
	eng.SetMonitorNames(names)
	eng.LogPolicies()

	ctrlSrv, err := control.NewServer(eng, logger, opts.controlSocket)
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}

	if opts.watch {
		watcher, err := newConfigWatcher(opts.configPath, raw, logger)
		if err != nil {
			logger.Warnf("config watch disabled: %v", err)
		} else {
			go func() { errs <- watcher.Run(ctx) }()
		}
	}

	go func() { errs <- eng.Run(ctx) }()
	go func() { errs <- ctrlSrv.Serve(ctx) }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case err := <-errs:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("komoffset exited: %v", err)
				return err
			}
			if ctx.Err() != nil {
				logger.Infof("komoffset stopped")
				return nil
			}
		case sig := <-sigs:
			logger.Infof("received %s, shutting down", sig)
			cancel()
		}
	}
}

func logDryRunSummary(logger *util.Logger, commands func() []layout.Command) {
	var offsets, retiles int
	for _, cmd := range commands() {
		switch cmd.Kind {
		case layout.CommandSetMonitorOffset:
			offsets++
		case layout.CommandRetile:
			retiles++
		}
	}
	logger.Infof("dry-run recorded %d offset change(s) and %d retile(s)", offsets, retiles)
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
