package optfactory

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes a YAML document into an override mapping.
func LoadYAML(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("optfactory: decode yaml: %w", err)
	}
	return out, nil
}

// CreateFromYAML decodes data with LoadYAML and passes it to Create.
func (f *Factory) CreateFromYAML(data []byte) (*Options, error) {
	overrides, err := LoadYAML(data)
	if err != nil {
		return nil, err
	}
	return f.Create(overrides)
}

// CreateMutableFromYAML decodes data with LoadYAML and passes it to
// CreateMutable.
func (f *Factory) CreateMutableFromYAML(data []byte) (*MutableOptions, error) {
	overrides, err := LoadYAML(data)
	if err != nil {
		return nil, err
	}
	return f.CreateMutable(overrides)
}

// orderedNode builds a YAML mapping that keeps schema order.
func orderedNode(keys []string, value func(key string) (any, bool)) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range keys {
		v, ok := value(key)
		if !ok {
			continue
		}
		var child yaml.Node
		if nested, isNode := v.(*yaml.Node); isNode {
			child = *nested
		} else if err := child.Encode(v); err != nil {
			return nil, fmt.Errorf("optfactory: encode %q: %w", key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&child,
		)
	}
	return node, nil
}

func (o *Options) yamlNode(withDefaults bool) (*yaml.Node, error) {
	var nodeErr error
	node, err := orderedNode(o.keys, func(key string) (any, bool) {
		value := o.values[key]
		if section, ok := value.(*Options); ok {
			child, err := section.yamlNode(withDefaults)
			if err != nil {
				nodeErr = err
				return nil, false
			}
			return child, true
		}
		return value, withDefaults || o.explicit[key]
	})
	if nodeErr != nil {
		return nil, nodeErr
	}
	return node, err
}

// ToYAML serialises the snapshot in schema order.
func (o *Options) ToYAML(withDefaults bool) ([]byte, error) {
	node, err := o.yamlNode(withDefaults)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

// MarshalYAML implements yaml.Marshaler, keeping schema order.
func (o *Options) MarshalYAML() (any, error) {
	return o.yamlNode(true)
}

// UnmarshalYAML always fails: snapshots are created by a Factory.
func (o *Options) UnmarshalYAML(*yaml.Node) error {
	return ErrImmutableWrite
}

// MarshalJSON implements json.Marshaler.
func (o *Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ToMap(true))
}

// UnmarshalJSON always fails: snapshots are created by a Factory.
func (o *Options) UnmarshalJSON([]byte) error {
	return ErrImmutableWrite
}

func (m *MutableOptions) yamlNode(withDefaults bool) (*yaml.Node, error) {
	var nodeErr error
	node, err := orderedNode(m.schema.keys, func(key string) (any, bool) {
		if section, ok := m.sections[key]; ok {
			child, err := section.yamlNode(withDefaults)
			if err != nil {
				nodeErr = err
				return nil, false
			}
			return child, true
		}
		if !withDefaults {
			value, ok := m.data[key]
			return value, ok
		}
		value, err := m.Get(key)
		if err != nil {
			nodeErr = err
			return nil, false
		}
		return value, true
	})
	if nodeErr != nil {
		return nil, nodeErr
	}
	return node, err
}

// ToYAML serialises the current state in schema order.
func (m *MutableOptions) ToYAML(withDefaults bool) ([]byte, error) {
	node, err := m.yamlNode(withDefaults)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}
