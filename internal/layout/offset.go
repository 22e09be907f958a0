package layout

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Offset is the set of margins komorebi subtracts from a monitor's work area.
type Offset struct {
	Left   int `yaml:"left" json:"left"`
	Top    int `yaml:"top" json:"top"`
	Right  int `yaml:"right" json:"right"`
	Bottom int `yaml:"bottom" json:"bottom"`
}

// Uniform returns an offset with the same margin on every side.
func Uniform(v int) Offset {
	return Offset{Left: v, Top: v, Right: v, Bottom: v}
}

// UnmarshalYAML accepts either the four-sided mapping or a single integer,
// which applies the same margin on every side.
func (o *Offset) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var v int
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("offset: %w", err)
		}
		*o = Uniform(v)
		return nil
	}
	type plain Offset
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*o = Offset(p)
	return nil
}

func (o Offset) String() string {
	return fmt.Sprintf("(left=%d top=%d right=%d bottom=%d)", o.Left, o.Top, o.Right, o.Bottom)
}

// OptionalOffset is an offset that may be unset.
type OptionalOffset struct {
	Offset Offset `json:"offset"`
	Set    bool   `json:"set"`
}

// Some wraps a present offset.
func Some(o Offset) OptionalOffset {
	return OptionalOffset{Offset: o, Set: true}
}

// Equal reports whether the optional value is set and equal to o.
func (o OptionalOffset) Equal(other Offset) bool {
	return o.Set && o.Offset == other
}

func (o OptionalOffset) String() string {
	if !o.Set {
		return "unset"
	}
	return o.Offset.String()
}
