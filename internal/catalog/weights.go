package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weight is one named numeric entry of a rule table.
type Weight struct {
	Name  string
	Value float64
}

// Weights is an ordered name → value table. In YAML and JSON it is written
// as a mapping; declaration order is kept because reason codes follow it.
type Weights []Weight

// Get returns the value stored under name.
func (w Weights) Get(name string) (float64, bool) {
	for _, e := range w {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}

// Names returns the entry names in declaration order.
func (w Weights) Names() []string {
	out := make([]string, len(w))
	for i, e := range w {
		out[i] = e.Name
	}
	return out
}

// UnmarshalYAML decodes a mapping node, keeping key order.
func (w *Weights) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return eris.Errorf("catalog: line %d: expected a mapping of name to number", value.Line)
	}
	out := make(Weights, 0, len(value.Content)/2)
	seen := make(map[string]bool, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if seen[key.Value] {
			return eris.Errorf("catalog: line %d: duplicate entry %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		var f float64
		if err := val.Decode(&f); err != nil {
			return eris.Wrapf(err, "catalog: line %d: %q must be numeric", val.Line, key.Value)
		}
		out = append(out, Weight{Name: key.Value, Value: f})
	}
	*w = out
	return nil
}

// MarshalYAML encodes w as an ordered mapping.
func (w Weights) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range w {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatWeight(e.Value)},
		)
	}
	return node, nil
}

// MarshalJSON encodes w as an object whose keys keep declaration order.
func (w Weights) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: marshal key %q", e.Name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(formatWeight(e.Value))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// formatWeight renders v with the fewest digits that round-trip.
func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
