package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError ties a problem to its location in the document.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Lint reports every problem in the document.
func (c *Config) Lint() []error {
	var errs []error
	add := func(path string, err error) {
		errs = append(errs, &ValidationError{Path: path, Err: err})
	}
	if c.Default == nil {
		add("default", ErrMissingDefault)
	}
	if c.OffsetDelayMs < 0 {
		add("offsetDelayMs", fmt.Errorf("cannot be negative, got %d", c.OffsetDelayMs))
	}
	lintLevel("", c.Level, add)
	for mi, mon := range c.Monitors {
		prefix := fmt.Sprintf("monitors[%d]", mi)
		lintLevel(prefix, mon.Level, add)
		for wi, ws := range mon.Workspaces {
			lintLevel(fmt.Sprintf("%s.workspaces[%d]", prefix, wi), ws.Level, add)
		}
	}
	return errs
}

func lintLevel(prefix string, lvl Level, add func(string, error)) {
	for i, rule := range lvl.Rules {
		path := fmt.Sprintf("rules[%d].count", i)
		if prefix != "" {
			path = prefix + "." + path
		}
		if rule.Count < 0 {
			add(path, fmt.Errorf("cannot be negative, got %d", rule.Count))
		}
	}
}

// LintFile parses path and reports every issue. The returned error is only
// set when the file cannot be read or decoded at all.
func LintFile(path string) ([]error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LintDocument(data)
}

// LintDocument is LintFile for an in-memory payload.
func LintDocument(data []byte) ([]error, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return append(cfg.Lint(), UnknownKeys(data)...), nil
}

// ErrUnknownKey marks a key the config schema does not define.
var ErrUnknownKey = errors.New("unknown key")

// UnknownKeys reports keys that Parse ignores, usually misspellings. Sides
// inside an offset mapping are not checked.
func UnknownKeys(data []byte) []error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var raw rawConfig
	var typeErr *yaml.TypeError
	if err := dec.Decode(&raw); err == nil || !errors.As(err, &typeErr) {
		return nil
	}
	var errs []error
	for _, msg := range typeErr.Errors {
		if strings.Contains(msg, "not found in type") {
			errs = append(errs, &ValidationError{Err: fmt.Errorf("%w: %s", ErrUnknownKey, msg)})
		}
	}
	return errs
}

// IsMissingDefault reports whether err stems from an absent global default.
func IsMissingDefault(err error) bool {
	return errors.Is(err, ErrMissingDefault)
}
