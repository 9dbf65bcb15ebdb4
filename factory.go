package optfactory

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/goliatone/go-optfactory/layering"
	"github.com/goliatone/go-optfactory/pkg/activity"
)

// Factory is an immutable schema of named options and nested sections. It
// creates MutableOptions and Options instances.
type Factory struct {
	keys    []string
	entries map[string]entry
	cfg     factoryConfig
}

// entry holds exactly one of spec or section.
type entry struct {
	spec    *ValueSpec
	section *Factory
}

func (e entry) equal(other entry) bool {
	if e.section != nil || other.section != nil {
		return e.section != nil && other.section != nil && e.section.Equal(other.section)
	}
	return e.spec.Equal(other.spec)
}

type builder struct {
	keys    []string
	entries map[string]entry
	cfg     factoryConfig
}

func (b *builder) put(name string, e entry) error {
	if existing, ok := b.entries[name]; ok {
		if existing.equal(e) {
			return nil
		}
		return fmt.Errorf("%w: %q is defined more than once with different values", ErrDuplicateOption, name)
	}
	b.keys = append(b.keys, name)
	b.entries[name] = e
	return nil
}

type field struct {
	name  string
	value any
}

// Field declares an option. value may be a *ValueSpec, a *Factory (declaring
// a section), or any other default, which is wrapped in a plain ValueSpec.
func Field(name string, value any) Definition {
	return field{name: name, value: value}
}

func (f field) define(b *builder) error {
	if err := validateName(f.name); err != nil {
		return err
	}
	e, err := makeEntry(f.value)
	if err != nil {
		return err
	}
	return b.put(f.name, e)
}

type include struct {
	factory *Factory
}

// Include merges every option and section of factory. Repeated names must
// carry equal definitions.
func Include(factory *Factory) Definition {
	return include{factory: factory}
}

func (i include) define(b *builder) error {
	if i.factory == nil {
		return nil
	}
	for _, key := range i.factory.keys {
		if err := b.put(key, i.factory.entries[key]); err != nil {
			return err
		}
	}
	return nil
}

func makeEntry(value any) (entry, error) {
	switch typed := value.(type) {
	case *Factory:
		if typed == nil {
			return entry{}, fmt.Errorf("%w: nil section", ErrInvalidSpec)
		}
		return entry{section: typed}, nil
	case *ValueSpec:
		if typed == nil {
			return entry{spec: &ValueSpec{}}, nil
		}
		return entry{spec: typed.clone()}, nil
	}
	spec, err := NewValueSpec(value)
	if err != nil {
		return entry{}, err
	}
	return entry{spec: spec}, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: option name must not be empty", ErrInvalidSpec)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("%w: option name %q must not contain '.'", ErrInvalidSpec, name)
	}
	return nil
}

// New builds a Factory from fields, included factories and configuration
// options, keeping declaration order.
func New(defs ...Definition) (*Factory, error) {
	b := &builder{entries: map[string]entry{}}
	for _, def := range defs {
		if def == nil {
			continue
		}
		if err := def.define(b); err != nil {
			return nil, err
		}
	}
	if b.cfg.programCache == nil {
		b.cfg.programCache = NewMemoryProgramCache()
	}
	return &Factory{keys: b.keys, entries: b.entries, cfg: b.cfg}, nil
}

// MustNew is New that panics on error, for package-level declarations.
func MustNew(defs ...Definition) *Factory {
	f, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return f
}

// Add returns a new Factory with updated definitions; f is unchanged.
//
// A *ValueSpec replaces an option outright. Any other value on an existing
// option keeps its doc, types and checks and only replaces the default. A map
// on an existing section updates that section recursively; replacing a
// section, or turning an option into a section, fails with
// ErrIllegalSectionReplace.
func (f *Factory) Add(updates ...Definition) (*Factory, error) {
	out := &Factory{
		keys:    slices.Clone(f.keys),
		entries: make(map[string]entry, len(f.entries)),
		cfg:     f.cfg.clone(),
	}
	for key, e := range f.entries {
		out.entries[key] = e
	}
	b := &builder{cfg: out.cfg}
	for _, update := range updates {
		switch typed := update.(type) {
		case nil:
		case field:
			if err := out.update(typed.name, typed.value); err != nil {
				return nil, err
			}
		case Option:
			if err := typed.define(b); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: Add accepts fields and options only", ErrInvalidSpec)
		}
	}
	out.cfg = b.cfg
	return out, nil
}

func (f *Factory) update(name string, value any) error {
	if err := validateName(name); err != nil {
		return err
	}
	existing, exists := f.entries[name]
	_, isFactory := value.(*Factory)
	switch {
	case exists && existing.section != nil:
		mapping, ok := value.(map[string]any)
		if !ok {
			return optionError("add", name, nil, ErrIllegalSectionReplace)
		}
		section, err := existing.section.Add(mappingFields(mapping)...)
		if err != nil {
			return err
		}
		f.entries[name] = entry{section: section}
		return nil
	case isFactory && exists:
		return optionError("add", name, nil, ErrIllegalSectionReplace)
	}
	if _, isSpec := value.(*ValueSpec); isSpec || !exists {
		e, err := makeEntry(value)
		if err != nil {
			return err
		}
		if !exists {
			f.keys = append(f.keys, name)
		}
		f.entries[name] = e
		return nil
	}
	f.entries[name] = entry{spec: existing.spec.WithDefault(value)}
	return nil
}

func mappingFields(mapping map[string]any) []Definition {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	defs := make([]Definition, 0, len(keys))
	for _, key := range keys {
		defs = append(defs, Field(key, mapping[key]))
	}
	return defs
}

// Equal reports whether both factories declare the same options with equal
// specs, ignoring declaration order and configuration.
func (f *Factory) Equal(other *Factory) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.entries) != len(other.entries) {
		return false
	}
	for key, e := range f.entries {
		o, ok := other.entries[key]
		if !ok || !e.equal(o) {
			return false
		}
	}
	return true
}

// Keys lists top-level names in declaration order.
func (f *Factory) Keys() []string { return slices.Clone(f.keys) }

// Len reports the number of top-level options and sections.
func (f *Factory) Len() int { return len(f.keys) }

// Contains reports whether name is declared. Dotted names descend into
// sections.
func (f *Factory) Contains(name string) bool {
	owner, leaf, ok := f.locate(name)
	if !ok {
		return false
	}
	_, ok = owner.entries[leaf]
	return ok
}

func (f *Factory) locate(name string) (*Factory, string, bool) {
	parts := strings.Split(name, ".")
	owner := f
	for _, part := range parts[:len(parts)-1] {
		e, ok := owner.entries[part]
		if !ok || e.section == nil {
			return nil, "", false
		}
		owner = e.section
	}
	return owner, parts[len(parts)-1], true
}

// Spec returns the ValueSpec of an option. Dotted names descend into
// sections.
func (f *Factory) Spec(name string) (*ValueSpec, bool) {
	owner, leaf, ok := f.locate(name)
	if !ok {
		return nil, false
	}
	e, ok := owner.entries[leaf]
	if !ok || e.spec == nil {
		return nil, false
	}
	return e.spec.clone(), true
}

// Section returns the Factory of a section.
func (f *Factory) Section(name string) (*Factory, bool) {
	owner, leaf, ok := f.locate(name)
	if !ok {
		return nil, false
	}
	e, ok := owner.entries[leaf]
	if !ok || e.section == nil {
		return nil, false
	}
	return e.section, true
}

// Defaults maps every name to its *ValueSpec, or to the *Factory of a
// section. The result can be passed back through Field to rebuild a schema.
func (f *Factory) Defaults() map[string]any {
	out := make(map[string]any, len(f.keys))
	for _, key := range f.keys {
		e := f.entries[key]
		if e.section != nil {
			out[key] = e.section
			continue
		}
		out[key] = e.spec.clone()
	}
	return out
}

// Doc maps every name to its doc string, with nested maps for sections.
func (f *Factory) Doc() map[string]any {
	out := make(map[string]any, len(f.keys))
	for _, key := range f.keys {
		e := f.entries[key]
		if e.section != nil {
			out[key] = e.section.Doc()
			continue
		}
		out[key] = e.spec.doc
	}
	return out
}

// Overrides normalizes data into the explicit values a create call would
// use: a deep copy keyed by declared names, with unknown keys dropped and
// section values converted to nested maps.
func (f *Factory) Overrides(data any) (map[string]any, error) {
	return f.overrides(data, "")
}

func (f *Factory) overrides(data any, prefix string) (map[string]any, error) {
	mapping, err := toMapping(data)
	if err != nil {
		return nil, optionError("create", strings.TrimSuffix(prefix, "."), data, err)
	}
	out := map[string]any{}
	for _, key := range f.keys {
		raw, ok := mapping[key]
		if !ok {
			continue
		}
		if section := f.entries[key].section; section != nil {
			sub, err := section.overrides(raw, prefix+key+".")
			if err != nil {
				return nil, err
			}
			out[key] = sub
			continue
		}
		out[key] = layering.CloneAny(raw)
	}
	return out, nil
}

// toMapping accepts nil, maps keyed by strings, *Options and *MutableOptions.
// Options instances contribute every value, defaults included.
func toMapping(data any) (map[string]any, error) {
	switch typed := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return typed, nil
	case *Options:
		if typed == nil {
			return nil, nil
		}
		return typed.ToMap(true), nil
	case *MutableOptions:
		if typed == nil {
			return nil, nil
		}
		return typed.ToMap(true)
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Map {
		return nil, ErrTypeMismatch
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, ok := iter.Key().Interface().(string)
		if !ok {
			return nil, ErrTypeMismatch
		}
		out[key] = iter.Value().Interface()
	}
	return out, nil
}

// CreateMutable builds a MutableOptions from overrides (a map, *Options,
// *MutableOptions, or nil). Unknown keys are dropped; explicit values are
// deep-copied and validated.
func (f *Factory) CreateMutable(overrides any) (*MutableOptions, error) {
	data, err := f.Overrides(overrides)
	if err != nil {
		return nil, err
	}
	rt := newRuntime(f.cfg.clone())
	m, err := f.build(rt, data, nil, "")
	if err != nil {
		return nil, err
	}
	rt.emit(activity.BuildOptionsCreatedEvent(activity.OptionEventInput{
		ObjectID: rt.id,
		Metadata: map[string]any{"explicit": countLeaves(data)},
	}))
	return m, nil
}

func countLeaves(data map[string]any) int {
	n := 0
	for _, value := range data {
		if nested, ok := value.(map[string]any); ok {
			n += countLeaves(nested)
			continue
		}
		n++
	}
	return n
}

// Create builds an immutable Options snapshot, resolving every default.
func (f *Factory) Create(overrides any) (*Options, error) {
	mutable, err := f.CreateMutable(overrides)
	if err != nil {
		return nil, err
	}
	return mutable.Freeze()
}

func (f *Factory) build(rt *runtime, data map[string]any, parent *MutableOptions, name string) (*MutableOptions, error) {
	m := &MutableOptions{
		rt:       rt,
		schema:   f,
		parent:   parent,
		name:     name,
		sections: map[string]*MutableOptions{},
		data:     map[string]any{},
	}
	m.resetCache()
	for _, key := range f.keys {
		e := f.entries[key]
		if e.section == nil {
			continue
		}
		sub, _ := data[key].(map[string]any)
		section, err := e.section.build(rt, sub, m, key)
		if err != nil {
			return nil, err
		}
		m.sections[key] = section
	}
	for _, key := range f.keys {
		e := f.entries[key]
		raw, ok := data[key]
		if e.section != nil || !ok {
			continue
		}
		value, err := e.spec.Validate(m.qualified(key), raw)
		if err != nil {
			return nil, err
		}
		m.data[key] = value
	}
	return m, nil
}
