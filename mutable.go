package optfactory

import (
	"slices"
	"strings"

	"github.com/goliatone/go-optfactory/layering"
	"github.com/goliatone/go-optfactory/pkg/activity"
)

// MutableOptions resolves options lazily: explicit values win, defaults are
// computed on first read and cached until the next Set or Unset anywhere in
// the tree. A MutableOptions is not safe for concurrent use.
type MutableOptions struct {
	rt       *runtime
	schema   *Factory
	parent   *MutableOptions
	name     string
	sections map[string]*MutableOptions
	data     map[string]any

	cache   map[string]any
	deps    map[string][]string
	engines map[string]string
}

// evalFrame is one option whose default is being computed.
type evalFrame struct {
	owner *MutableOptions
	name  string
	reads []string
}

// evalContext tracks the chain of defaults under evaluation for one
// top-level read.
type evalContext struct {
	frames []*evalFrame
}

func (ec *evalContext) record(qualified string) {
	if len(ec.frames) == 0 {
		return
	}
	top := ec.frames[len(ec.frames)-1]
	if !slices.Contains(top.reads, qualified) {
		top.reads = append(top.reads, qualified)
	}
}

func (ec *evalContext) cycle(owner *MutableOptions, name string) error {
	for i, frame := range ec.frames {
		if frame.owner != owner || frame.name != name {
			continue
		}
		chain := make([]string, 0, len(ec.frames)-i)
		for _, f := range ec.frames[i:] {
			chain = append(chain, f.owner.qualified(f.name))
		}
		return &CircularDefinitionError{Chain: chain}
	}
	return nil
}

func (m *MutableOptions) resetCache() {
	m.cache = map[string]any{}
	m.deps = map[string][]string{}
	m.engines = map[string]string{}
}

func (m *MutableOptions) root() *MutableOptions {
	r := m
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// clearTree drops every cached value below m.
func (m *MutableOptions) clearTree() {
	m.resetCache()
	for _, section := range m.sections {
		section.clearTree()
	}
}

// Path returns the dotted path of this section from the root, empty at the
// root.
func (m *MutableOptions) Path() string {
	if m.parent == nil {
		return ""
	}
	return m.parent.qualified(m.name)
}

func (m *MutableOptions) qualified(name string) string {
	if path := m.Path(); path != "" {
		return path + "." + name
	}
	return name
}

// locate splits a dotted name into the section owning it and the last
// segment, which is guaranteed to be declared.
func (m *MutableOptions) locate(op, name string) (*MutableOptions, string, error) {
	parts := strings.Split(name, ".")
	owner := m
	for _, part := range parts[:len(parts)-1] {
		section, ok := owner.sections[part]
		if !ok {
			return nil, "", unknownOption(op, m.qualified(name))
		}
		owner = section
	}
	leaf := parts[len(parts)-1]
	if _, ok := owner.schema.entries[leaf]; !ok {
		return nil, "", unknownOption(op, m.qualified(name))
	}
	return owner, leaf, nil
}

// resolve returns the cached, explicit or freshly computed value of the
// option leaf. It must not be called for sections.
func (m *MutableOptions) resolve(leaf string, ec *evalContext) (any, error) {
	ec.record(m.qualified(leaf))
	if value, ok := m.cache[leaf]; ok {
		return value, nil
	}
	if value, ok := m.data[leaf]; ok {
		m.cache[leaf] = value
		return value, nil
	}
	if err := ec.cycle(m, leaf); err != nil {
		return nil, err
	}
	frame := &evalFrame{owner: m, name: leaf}
	ec.frames = append(ec.frames, frame)
	value, engine, err := evaluateDefault(m.rt, m.schema.entries[leaf].spec, &sectionView{graph: m, ec: ec}, leaf)
	ec.frames = ec.frames[:len(ec.frames)-1]
	if err != nil {
		return nil, err
	}
	m.cache[leaf] = value
	m.deps[leaf] = frame.reads
	m.engines[leaf] = engine
	return value, nil
}

// Get returns the value of an option, or the *MutableOptions of a section.
// Dotted names descend into sections. Values are deep copies.
func (m *MutableOptions) Get(name string) (any, error) {
	owner, leaf, err := m.locate("get", name)
	if err != nil {
		return nil, err
	}
	if section, ok := owner.sections[leaf]; ok {
		return section, nil
	}
	value, err := owner.resolve(leaf, &evalContext{})
	if err != nil {
		return nil, err
	}
	return layering.CloneAny(value), nil
}

// Section returns a nested section by (dotted) name.
func (m *MutableOptions) Section(name string) (*MutableOptions, error) {
	owner, leaf, err := m.locate("section", name)
	if err != nil {
		return nil, err
	}
	section, ok := owner.sections[leaf]
	if !ok {
		return nil, optionError("section", m.qualified(name), nil, ErrNotSection)
	}
	return section, nil
}

// Parent returns the enclosing section, nil at the root.
func (m *MutableOptions) Parent() *MutableOptions { return m.parent }

// Set validates value and stores it as the explicit value of an option,
// invalidating every cached default in the tree.
func (m *MutableOptions) Set(name string, value any) error {
	owner, leaf, err := m.locate("set", name)
	if err != nil {
		return err
	}
	qualified := m.qualified(name)
	if _, ok := owner.sections[leaf]; ok {
		return optionError("set", qualified, value, ErrIllegalSectionReplace)
	}
	validated, err := owner.schema.entries[leaf].spec.Validate(qualified, layering.CloneAny(value))
	if err != nil {
		return err
	}
	old, explicit := owner.data[leaf]
	owner.data[leaf] = validated
	m.root().clearTree()
	m.rt.emit(activity.BuildOptionSetEvent(activity.OptionEventInput{
		ObjectID: m.rt.id,
		Path:     qualified,
		OldValue: old,
		NewValue: validated,
		Explicit: explicit,
	}))
	return nil
}

// Unset removes the explicit value of an option so its default applies
// again. Unsetting an option without an explicit value does nothing.
func (m *MutableOptions) Unset(name string) error {
	owner, leaf, err := m.locate("unset", name)
	if err != nil {
		return err
	}
	qualified := m.qualified(name)
	if _, ok := owner.sections[leaf]; ok {
		return optionError("unset", qualified, nil, ErrIllegalSectionReplace)
	}
	old, ok := owner.data[leaf]
	if !ok {
		return nil
	}
	delete(owner.data, leaf)
	m.root().clearTree()
	m.rt.emit(activity.BuildOptionUnsetEvent(activity.OptionEventInput{
		ObjectID: m.rt.id,
		Path:     qualified,
		OldValue: old,
	}))
	return nil
}

// IsDefault reports whether an option has no explicit value. For a section
// it reports whether every option below it is default; use
// Section(name).DefaultMap() for the per-key mapping.
func (m *MutableOptions) IsDefault(name string) (bool, error) {
	owner, leaf, err := m.locate("is_default", name)
	if err != nil {
		return false, err
	}
	if section, ok := owner.sections[leaf]; ok {
		return section.allDefault(), nil
	}
	_, explicit := owner.data[leaf]
	return !explicit, nil
}

func (m *MutableOptions) allDefault() bool {
	if len(m.data) > 0 {
		return false
	}
	for _, section := range m.sections {
		if !section.allDefault() {
			return false
		}
	}
	return true
}

// DefaultMap maps every option to whether it is default, with nested maps
// for sections.
func (m *MutableOptions) DefaultMap() map[string]any {
	out := make(map[string]any, len(m.schema.keys))
	for _, key := range m.schema.keys {
		if section, ok := m.sections[key]; ok {
			out[key] = section.DefaultMap()
			continue
		}
		_, explicit := m.data[key]
		out[key] = !explicit
	}
	return out
}

// Keys lists the declared names in schema order.
func (m *MutableOptions) Keys() []string { return m.schema.Keys() }

// Len reports the number of declared options and sections.
func (m *MutableOptions) Len() int { return len(m.schema.keys) }

// Contains reports whether a (dotted) name is declared.
func (m *MutableOptions) Contains(name string) bool {
	_, _, err := m.locate("contains", name)
	return err == nil
}

// Sections lists the names of nested sections in schema order.
func (m *MutableOptions) Sections() []string {
	var out []string
	for _, key := range m.schema.keys {
		if _, ok := m.sections[key]; ok {
			out = append(out, key)
		}
	}
	return out
}

// Schema returns the Factory this instance was created from.
func (m *MutableOptions) Schema() *Factory { return m.schema }

// Items resolves every name in schema order. Sections appear as
// *MutableOptions.
func (m *MutableOptions) Items() ([]Item, error) {
	items := make([]Item, 0, len(m.schema.keys))
	for _, key := range m.schema.keys {
		value, err := m.Get(key)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Name: key, Value: value})
	}
	return items, nil
}

// Values resolves every name in schema order.
func (m *MutableOptions) Values() ([]any, error) {
	items, err := m.Items()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return values, nil
}

// Doc maps every name to its doc string, with nested maps for sections.
func (m *MutableOptions) Doc() map[string]any { return m.schema.Doc() }

// ToMap converts the tree to nested maps. Without defaults only explicit
// values are included; sections always appear.
func (m *MutableOptions) ToMap(withDefaults bool) (map[string]any, error) {
	out := make(map[string]any, len(m.schema.keys))
	for _, key := range m.schema.keys {
		if section, ok := m.sections[key]; ok {
			sub, err := section.ToMap(withDefaults)
			if err != nil {
				return nil, err
			}
			out[key] = sub
			continue
		}
		if !withDefaults {
			if value, ok := m.data[key]; ok {
				out[key] = layering.CloneAny(value)
			}
			continue
		}
		value, err := m.Get(key)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

// Freeze resolves every default and returns an immutable snapshot of the
// current state.
func (m *MutableOptions) Freeze() (*Options, error) {
	return m.freeze(nil, newSnapshotID())
}

func (m *MutableOptions) freeze(parent *Options, id string) (*Options, error) {
	o := &Options{
		id:       id,
		path:     m.Path(),
		parent:   parent,
		keys:     slices.Clone(m.schema.keys),
		values:   make(map[string]any, len(m.schema.keys)),
		explicit: make(map[string]bool, len(m.data)),
		docs:     make(map[string]string, len(m.schema.keys)),
	}
	for _, key := range m.schema.keys {
		if section, ok := m.sections[key]; ok {
			sub, err := section.freeze(o, id)
			if err != nil {
				return nil, err
			}
			o.values[key] = sub
			continue
		}
		value, err := m.Get(key)
		if err != nil {
			return nil, err
		}
		o.values[key] = value
		o.docs[key] = m.schema.entries[key].spec.doc
		if _, ok := m.data[key]; ok {
			o.explicit[key] = true
		}
	}
	return o, nil
}

// Trace explains where the value of an option comes from.
func (m *MutableOptions) Trace(name string) (Trace, error) {
	owner, leaf, err := m.locate("trace", name)
	if err != nil {
		return Trace{}, err
	}
	qualified := m.qualified(name)
	if _, ok := owner.sections[leaf]; ok {
		return Trace{}, optionError("trace", qualified, nil, ErrNotSection)
	}
	value, err := owner.resolve(leaf, &evalContext{})
	if err != nil {
		return Trace{}, err
	}
	trace := Trace{Path: qualified, Value: layering.CloneAny(value)}
	if _, ok := owner.data[leaf]; ok {
		trace.Source = SourceExplicit
		return trace, nil
	}
	trace.Source = SourceDefault
	trace.Engine = owner.engines[leaf]
	trace.DependsOn = slices.Clone(owner.deps[leaf])
	switch def := owner.schema.entries[leaf].spec.def.(type) {
	case Rule:
		trace.Expr = def.Source
	case string:
		if trace.Engine == engineReference {
			trace.Expr = def
		}
	}
	return trace, nil
}

// sectionView is the Resolver handed to default expressions. Reads go
// through the shared evalContext so cycles are detected across sections.
type sectionView struct {
	graph *MutableOptions
	ec    *evalContext
}

func (v *sectionView) Get(name string) (any, error) {
	owner, leaf, err := v.graph.locate("get", name)
	if err != nil {
		return nil, err
	}
	if section, ok := owner.sections[leaf]; ok {
		return &sectionView{graph: section, ec: v.ec}, nil
	}
	value, err := owner.resolve(leaf, v.ec)
	if err != nil {
		return nil, err
	}
	return layering.CloneAny(value), nil
}

func (v *sectionView) Section(name string) (Resolver, error) {
	section, err := v.graph.Section(name)
	if err != nil {
		return nil, err
	}
	return &sectionView{graph: section, ec: v.ec}, nil
}

func (v *sectionView) Parent() Resolver {
	if v.graph.parent == nil {
		return nil
	}
	return &sectionView{graph: v.graph.parent, ec: v.ec}
}

func (v *sectionView) Contains(name string) bool { return v.graph.Contains(name) }

func (v *sectionView) Keys() []string { return v.graph.Keys() }
