package draconic

import (
	"errors"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes a single YAML document into script values, keeping
// mapping key order.
func DecodeYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return fromYAMLNode(&doc, 0)
}

func fromYAMLNode(n *yaml.Node, depth int) (Value, error) {
	if depth > 100 {
		return nil, errors.New("draconic: YAML nested too deeply")
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAMLNode(n.Content[0], depth+1)
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias, depth+1)
	case yaml.SequenceNode:
		l := NewList()
		for _, c := range n.Content {
			v, err := fromYAMLNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, v)
		}
		return l, nil
	case yaml.MappingNode:
		d := NewDict()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := fromYAMLNode(n.Content[i], depth+1)
			if err != nil {
				return nil, err
			}
			v, err := fromYAMLNode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			if err := d.Set(k, v); err != nil {
				return nil, err
			}
		}
		return d, nil
	case yaml.ScalarNode:
		var raw any
		if err := n.Decode(&raw); err != nil {
			return nil, err
		}
		switch x := raw.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case uint64:
			if x > math.MaxInt64 {
				return float64(x), nil
			}
			return int64(x), nil
		case float64, string, bool, nil:
			return x, nil
		}
		return n.Value, nil
	}
	return nil, errors.New("draconic: unsupported YAML node")
}

// EncodeYAML encodes a script value as a YAML document.
func EncodeYAML(v Value) ([]byte, error) {
	n, err := toYAMLNode(v, 0)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

func toYAMLNode(v Value, depth int) (*yaml.Node, error) {
	if depth > 100 {
		return nil, valueErrorf("value nested too deeply to serialize")
	}
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}
	switch x := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(x)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(x, 10)), nil
	case float64:
		switch {
		case math.IsInf(x, 1):
			return scalar("!!float", ".inf"), nil
		case math.IsInf(x, -1):
			return scalar("!!float", "-.inf"), nil
		case math.IsNaN(x):
			return scalar("!!float", ".nan"), nil
		}
		return scalar("!!float", formatFloat(x)), nil
	case string:
		return scalar("!!str", x), nil
	case *List:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x.Items {
			c, err := toYAMLNode(item, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case *Dict:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range x.entries {
			k, err := toYAMLNode(e.key, depth+1)
			if err != nil {
				return nil, err
			}
			val, err := toYAMLNode(e.value, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, k, val)
		}
		return n, nil
	}
	return nil, typeErrorf("Object of type %s is not YAML serializable", TypeName(v))
}

func builtinLoadYAML(c *Call) (Value, error) {
	s, err := c.Str(0, "yamlstr")
	if err != nil {
		return nil, err
	}
	if err := c.Interp.checkLen(len(s)); err != nil {
		return nil, err
	}
	v, err := DecodeYAML([]byte(s))
	if err != nil {
		return nil, &RuntimeError{Kind: ValueError, Msg: "invalid YAML: " + err.Error(), Err: err}
	}
	return v, nil
}

func builtinDumpYAML(c *Call) (Value, error) {
	v, err := c.Require(0, "obj")
	if err != nil {
		return nil, err
	}
	out, err := EncodeYAML(v)
	if err != nil {
		return nil, err
	}
	if err := c.Interp.checkLen(len(out)); err != nil {
		return nil, err
	}
	return string(out), nil
}
