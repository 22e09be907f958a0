package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

// ErrMissingDefault is returned when the global level has no default offset.
var ErrMissingDefault = errors.New("global default offset is required")

// Config is the top-level configuration document. The embedded Level is the
// global cascade level.
type Config struct {
	Level               `yaml:",inline"`
	Monitors            []MonitorConfig `yaml:"monitors"`
	OffsetDelayMs       int             `yaml:"offsetDelayMs"`
	AdoptManagerOffsets bool            `yaml:"adoptManagerOffsets"`
}

// rawConfig mirrors Config on disk, including the legacy offset_delay key.
type rawConfig struct {
	Level               `yaml:",inline"`
	Monitors            []MonitorConfig `yaml:"monitors"`
	OffsetDelayMs       *int            `yaml:"offsetDelayMs"`
	LegacyOffsetDelay   *int            `yaml:"offset_delay"`
	AdoptManagerOffsets bool            `yaml:"adoptManagerOffsets"`
}

// UnmarshalYAML accepts the legacy offset_delay key.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Level = raw.Level
	c.Monitors = raw.Monitors
	c.AdoptManagerOffsets = raw.AdoptManagerOffsets

	switch {
	case raw.OffsetDelayMs != nil:
		c.OffsetDelayMs = *raw.OffsetDelayMs
	case raw.LegacyOffsetDelay != nil:
		c.OffsetDelayMs = *raw.LegacyOffsetDelay
	default:
		c.OffsetDelayMs = 0
	}
	return nil
}

// Level is one tier of the cascade. Nil fields are absent and fall through to
// the next less specific level. A non-nil empty Rules list is present and
// overrides less specific rule lists.
type Level struct {
	Default *layout.Offset `yaml:"default"`
	Monocle *layout.Offset `yaml:"monocle"`
	Rules   []Rule         `yaml:"rules"`
}

// MonitorConfig overrides the global level for one monitor index.
type MonitorConfig struct {
	Level      `yaml:",inline"`
	Workspaces []WorkspaceConfig `yaml:"workspaces"`
}

// WorkspaceConfig overrides the monitor level for one workspace index.
type WorkspaceConfig struct {
	Level `yaml:",inline"`
}

// Rule selects Padding when the workspace holds at most Count windows.
type Rule struct {
	Count   int           `yaml:"count"`
	Padding layout.Offset `yaml:"padding"`
}

// RetileDelay is the debounce window for retile commands. Zero disables retiling.
func (c *Config) RetileDelay() time.Duration {
	return time.Duration(c.OffsetDelayMs) * time.Millisecond
}

// DefaultPath returns the per-user configuration location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "komoffset", "config.yaml")
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration payload.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns the first lint issue, if any.
func (c *Config) Validate() error {
	if errs := c.Lint(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}
