package rules

import (
	"fmt"

	"github.com/omark96/komorebi-custom-offset/internal/layout"
)

// Decision is the outcome of evaluating a policy.
type Decision struct {
	Offset layout.Offset
	// Rule is the index of the matching threshold, or -1.
	Rule    int
	Monocle bool
}

func (d Decision) String() string {
	switch {
	case d.Monocle:
		return fmt.Sprintf("monocle %s", d.Offset)
	case d.Rule >= 0:
		return fmt.Sprintf("rule[%d] %s", d.Rule, d.Offset)
	default:
		return fmt.Sprintf("default %s", d.Offset)
	}
}

// Evaluate returns the desired offset for a workspace.
func Evaluate(p Policy, monocle bool, windows int) layout.Offset {
	return Explain(p, monocle, windows).Offset
}

// Explain evaluates p and reports which branch produced the offset. An active
// monocle container wins over rules when the policy has a monocle offset.
// Otherwise the first threshold, in configured order, whose count is at least
// windows matches; the default applies when none does.
func Explain(p Policy, monocle bool, windows int) Decision {
	if monocle && p.Monocle.Set {
		return Decision{Offset: p.Monocle.Offset, Rule: -1, Monocle: true}
	}
	for i, r := range p.Rules {
		if windows <= r.Count {
			return Decision{Offset: r.Offset, Rule: i}
		}
	}
	return Decision{Offset: p.Default, Rule: -1}
}
