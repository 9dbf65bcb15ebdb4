package optfactory

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-optfactory/layering"
)

// Options is an immutable, fully resolved snapshot. It has no setters;
// accessors return deep copies so callers cannot alter it.
type Options struct {
	id       string
	path     string
	parent   *Options
	keys     []string
	values   map[string]any
	explicit map[string]bool
	docs     map[string]string
}

func newSnapshotID() string { return uuid.NewString() }

// ID identifies the snapshot. Sections share the ID of their root.
func (o *Options) ID() string { return o.id }

// Path returns the dotted path of this section from the root, empty at the
// root.
func (o *Options) Path() string { return o.path }

// Parent returns the enclosing section, nil at the root.
func (o *Options) Parent() *Options { return o.parent }

func (o *Options) qualified(name string) string {
	if o.path != "" {
		return o.path + "." + name
	}
	return name
}

func (o *Options) locate(op, name string) (*Options, string, error) {
	parts := strings.Split(name, ".")
	owner := o
	for _, part := range parts[:len(parts)-1] {
		section, ok := owner.values[part].(*Options)
		if !ok {
			return nil, "", unknownOption(op, o.qualified(name))
		}
		owner = section
	}
	leaf := parts[len(parts)-1]
	if _, ok := owner.values[leaf]; !ok {
		return nil, "", unknownOption(op, o.qualified(name))
	}
	return owner, leaf, nil
}

// Get returns a copy of an option value, or the *Options of a section.
// Dotted names descend into sections.
func (o *Options) Get(name string) (any, error) {
	owner, leaf, err := o.locate("get", name)
	if err != nil {
		return nil, err
	}
	value := owner.values[leaf]
	if section, ok := value.(*Options); ok {
		return section, nil
	}
	return layering.CloneAny(value), nil
}

// Section returns a nested section by (dotted) name.
func (o *Options) Section(name string) (*Options, error) {
	owner, leaf, err := o.locate("section", name)
	if err != nil {
		return nil, err
	}
	section, ok := owner.values[leaf].(*Options)
	if !ok {
		return nil, optionError("section", o.qualified(name), nil, ErrNotSection)
	}
	return section, nil
}

// IsDefault reports whether an option held its default when the snapshot
// was taken. For a section it reports whether every option below it did;
// Section(name).DefaultMap() gives the per-key mapping.
func (o *Options) IsDefault(name string) (bool, error) {
	owner, leaf, err := o.locate("is_default", name)
	if err != nil {
		return false, err
	}
	if section, ok := owner.values[leaf].(*Options); ok {
		return section.allDefault(), nil
	}
	return !owner.explicit[leaf], nil
}

func (o *Options) allDefault() bool {
	for _, key := range o.keys {
		if section, ok := o.values[key].(*Options); ok {
			if !section.allDefault() {
				return false
			}
			continue
		}
		if o.explicit[key] {
			return false
		}
	}
	return true
}

// DefaultMap maps every option to whether it is default, with nested maps
// for sections.
func (o *Options) DefaultMap() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, key := range o.keys {
		if section, ok := o.values[key].(*Options); ok {
			out[key] = section.DefaultMap()
			continue
		}
		out[key] = !o.explicit[key]
	}
	return out
}

// Keys lists the option and section names in schema order.
func (o *Options) Keys() []string { return slices.Clone(o.keys) }

// Len reports the number of options and sections.
func (o *Options) Len() int { return len(o.keys) }

// Contains reports whether a (dotted) name exists.
func (o *Options) Contains(name string) bool {
	_, _, err := o.locate("contains", name)
	return err == nil
}

// Items returns every name and value in schema order. Sections appear as
// *Options.
func (o *Options) Items() []Item {
	items := make([]Item, 0, len(o.keys))
	for _, key := range o.keys {
		value := o.values[key]
		if _, ok := value.(*Options); !ok {
			value = layering.CloneAny(value)
		}
		items = append(items, Item{Name: key, Value: value})
	}
	return items
}

// Values returns every value in schema order.
func (o *Options) Values() []any {
	items := o.Items()
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return values
}

// Doc maps every name to its doc string, with nested maps for sections.
func (o *Options) Doc() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, key := range o.keys {
		if section, ok := o.values[key].(*Options); ok {
			out[key] = section.Doc()
			continue
		}
		out[key] = o.docs[key]
	}
	return out
}

// ToMap converts the snapshot to nested maps. Without defaults only values
// that were explicit are included; sections always appear.
func (o *Options) ToMap(withDefaults bool) map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, key := range o.keys {
		value := o.values[key]
		if section, ok := value.(*Options); ok {
			out[key] = section.ToMap(withDefaults)
			continue
		}
		if withDefaults || o.explicit[key] {
			out[key] = layering.CloneAny(value)
		}
	}
	return out
}
