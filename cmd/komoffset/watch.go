package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omark96/komorebi-custom-offset/internal/config"
	"github.com/omark96/komorebi-custom-offset/internal/debounce"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

const configSettleWindow = 250 * time.Millisecond

// configChecker lints the on-disk config after it changes. Policies are
// resolved once at startup, so a valid edit only produces a restart hint.
type configChecker struct {
	path    string
	logger  *util.Logger
	running []byte
	last    []byte
}

func newConfigChecker(path string, running []byte, logger *util.Logger) *configChecker {
	return &configChecker{
		path:    path,
		logger:  logger,
		running: append([]byte(nil), running...),
		last:    append([]byte(nil), running...),
	}
}

// Check reports whether the config on disk differs from the running one and
// is valid.
func (c *configChecker) Check(context.Context) error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		c.logger.Warnf("config changed on disk but could not be read: %v", err)
		return nil
	}
	if bytes.Equal(raw, c.last) {
		return nil
	}
	c.last = append(c.last[:0], raw...)

	diff := config.DiffDocuments(c.running, raw)
	if diff == "" {
		c.logger.Infof("config on disk matches the running config")
		return nil
	}
	issues, err := config.LintDocument(raw)
	if err != nil {
		c.logger.Warnf("config change on disk is invalid: %v", err)
		return nil
	}
	if len(issues) > 0 {
		c.logLintErrors(issues)
		return nil
	}
	c.logger.Warnf("config changed on disk; restart komoffset to apply. diff vs running config:\n%s", diff)
	return nil
}

func (c *configChecker) logLintErrors(errs []error) {
	c.logger.Warnf("config change on disk failed validation with %d issue(s):", len(errs))
	for _, err := range errs {
		c.logger.Warnf(" - %v", err)
	}
}

// configWatcher feeds fsnotify events for one file into a settle scheduler.
type configWatcher struct {
	target  string
	watcher *fsnotify.Watcher
	logger  *util.Logger
	sched   *debounce.Scheduler
}

func newConfigWatcher(path string, running []byte, logger *util.Logger) (*configWatcher, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	target = filepath.Clean(target)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	checker := newConfigChecker(target, running, logger)
	return &configWatcher{
		target:  target,
		watcher: watcher,
		logger:  logger,
		sched:   debounce.New("config", configSettleWindow, checker.Check, logger),
	}, nil
}

// Run forwards events until ctx is cancelled or the watcher closes.
func (w *configWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	go func() {
		_ = w.sched.Run(ctx)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, w.target) {
				continue
			}
			w.logger.Tracef("config event %s", event)
			w.sched.Signal()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("config watcher error: %v", err)
		}
	}
}

func relevant(event fsnotify.Event, target string) bool {
	if filepath.Clean(event.Name) != target {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
