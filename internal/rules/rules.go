package rules

import (
	"errors"
	"fmt"
	"slices"

	"github.com/omark96/komorebi-custom-offset/internal/config"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/state"
)

// Source names the cascade level a resolved value came from.
type Source string

const (
	SourceNone      Source = ""
	SourceGlobal    Source = "global"
	SourceMonitor   Source = "monitor"
	SourceWorkspace Source = "workspace"
)

// Threshold selects Offset when the window count is at most Count.
type Threshold struct {
	Count  int           `json:"count"`
	Offset layout.Offset `json:"offset"`
}

// Policy is the flattened configuration for one workspace.
type Policy struct {
	Rules       []Threshold           `json:"rules,omitempty"`
	Default     layout.Offset         `json:"default"`
	Monocle     layout.OptionalOffset `json:"monocle"`
	RulesFrom   Source                `json:"rulesFrom,omitempty"`
	DefaultFrom Source                `json:"defaultFrom"`
	MonocleFrom Source                `json:"monocleFrom,omitempty"`
}

// Entry is a policy together with its table coordinates.
type Entry struct {
	Monitor   int    `json:"monitor"`
	Workspace int    `json:"workspace"`
	Policy    Policy `json:"policy"`
}

// Table holds one immutable policy per (monitor, workspace) pair.
type Table struct {
	policies [][]Policy
}

// Policy returns the resolved policy for a workspace.
func (t *Table) Policy(monitor, workspace int) Policy {
	return t.policies[monitor][workspace]
}

// Topology returns the cardinality the table was built for.
func (t *Table) Topology() state.Topology {
	topo := make(state.Topology, len(t.policies))
	for i, row := range t.policies {
		topo[i] = len(row)
	}
	return topo
}

// Entries lists every policy in monitor then workspace order.
func (t *Table) Entries() []Entry {
	var out []Entry
	for m, row := range t.policies {
		for w, p := range row {
			p.Rules = slices.Clone(p.Rules)
			out = append(out, Entry{Monitor: m, Workspace: w, Policy: p})
		}
	}
	return out
}

// ConfigError reports a mismatch between the configuration and the live
// topology. Workspace is -1 when the monitor entry itself is missing.
type ConfigError struct {
	Monitor   int
	Workspace int
	Reason    string
}

func (e *ConfigError) Error() string {
	if e.Workspace < 0 {
		return fmt.Sprintf("config monitors[%d]: %s", e.Monitor, e.Reason)
	}
	return fmt.Sprintf("config monitors[%d].workspaces[%d]: %s", e.Monitor, e.Workspace, e.Reason)
}

// IsConfigError reports whether err is a topology mismatch.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}

// BuildPolicies resolves the cascade for every workspace in topo.
func BuildPolicies(cfg *config.Config, topo state.Topology) (*Table, error) {
	if cfg.Default == nil {
		return nil, fmt.Errorf("config: %w", config.ErrMissingDefault)
	}
	if len(cfg.Monitors) < len(topo) {
		return nil, &ConfigError{
			Monitor:   len(cfg.Monitors),
			Workspace: -1,
			Reason:    fmt.Sprintf("missing monitor entry; window manager reports %d monitors, config defines %d", len(topo), len(cfg.Monitors)),
		}
	}
	table := &Table{policies: make([][]Policy, len(topo))}
	for m, workspaces := range topo {
		mon := cfg.Monitors[m]
		if mon.Workspaces != nil && len(mon.Workspaces) < workspaces {
			return nil, &ConfigError{
				Monitor:   m,
				Workspace: len(mon.Workspaces),
				Reason:    fmt.Sprintf("missing workspace entry; monitor has %d workspaces, config defines %d", workspaces, len(mon.Workspaces)),
			}
		}
		row := make([]Policy, workspaces)
		for w := range row {
			chain := cascade{{SourceGlobal, cfg.Level}, {SourceMonitor, mon.Level}}
			if mon.Workspaces != nil {
				chain = append(chain, level{SourceWorkspace, mon.Workspaces[w].Level})
			}
			row[w] = chain.resolve()
		}
		table.policies[m] = row
	}
	return table, nil
}

type level struct {
	source Source
	values config.Level
}

// cascade is ordered least specific first.
type cascade []level

func (c cascade) resolve() Policy {
	var p Policy
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].values.Default != nil {
			p.Default, p.DefaultFrom = *c[i].values.Default, c[i].source
			break
		}
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].values.Monocle != nil {
			p.Monocle, p.MonocleFrom = layout.Some(*c[i].values.Monocle), c[i].source
			break
		}
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].values.Rules != nil {
			p.Rules, p.RulesFrom = compileRules(c[i].values.Rules), c[i].source
			break
		}
	}
	return p
}

func compileRules(rules []config.Rule) []Threshold {
	out := make([]Threshold, len(rules))
	for i, r := range rules {
		out[i] = Threshold{Count: r.Count, Offset: r.Padding}
	}
	return out
}
