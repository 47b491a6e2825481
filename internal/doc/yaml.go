package doc

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML parses a YAML document into a Value, keeping mapping order.
func DecodeYAML(data []byte) (Value, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return FromYAML(&node)
}

// FromYAML converts a parsed YAML node. Mapping keys keep document order,
// which a map[string]any decode would lose.
func FromYAML(node *yaml.Node) (Value, error) {
	if node == nil {
		return nil, nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null{}, nil
		}
		return FromYAML(node.Content[0])
	case yaml.AliasNode:
		return FromYAML(node.Alias)
	case yaml.MappingNode:
		pairs := make([]Pair, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val, err := FromYAML(node.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d: key %q: %w", node.Content[i].Line, key, err)
			}
			pairs = append(pairs, P(key, val))
		}
		return NewObject(pairs...), nil
	case yaml.SequenceNode:
		elems := make([]Value, len(node.Content))
		for i, child := range node.Content {
			val, err := FromYAML(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = val
		}
		return &Array{elems: elems}, nil
	case yaml.ScalarNode:
		return yamlScalar(node)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %v", node.Line, node.Kind)
	}
}

func yamlScalar(node *yaml.Node) (Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return Null{}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return nil, err
		}
		return Int(n), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return Float(f), nil
	default:
		return String(node.Value), nil
	}
}
