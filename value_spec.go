package optfactory

import (
	"fmt"
	"reflect"
	"slices"
)

// ValueSpec carries the default and metadata of a single option. A ValueSpec
// is immutable once constructed; Factory.Add copies it when only the default
// changes.
type ValueSpec struct {
	def      any
	doc      string
	types    []reflect.Type
	allowed  []any
	checkAll []Predicate
	checkAny []Predicate
}

// SpecOption configures a ValueSpec.
type SpecOption func(*ValueSpec)

// WithDoc sets the documentation string.
func WithDoc(doc string) SpecOption {
	return func(s *ValueSpec) {
		s.doc = doc
	}
}

// WithType restricts values to the given runtime types. Use Nil to accept a
// nil value.
func WithType(types ...reflect.Type) SpecOption {
	return func(s *ValueSpec) {
		s.types = append(s.types, types...)
	}
}

// WithAllowed restricts values to the given set.
func WithAllowed(values ...any) SpecOption {
	return func(s *ValueSpec) {
		s.allowed = append(s.allowed, values...)
	}
}

// WithCheckAll requires every predicate to accept the value.
func WithCheckAll(checks ...Predicate) SpecOption {
	return func(s *ValueSpec) {
		s.checkAll = append(s.checkAll, checks...)
	}
}

// WithCheckAny requires at least one predicate to accept the value.
func WithCheckAny(checks ...Predicate) SpecOption {
	return func(s *ValueSpec) {
		s.checkAny = append(s.checkAny, checks...)
	}
}

// NewValueSpec builds a ValueSpec around def, which may be a literal, an
// Expression, a Rule, or the name of another option.
func NewValueSpec(def any, opts ...SpecOption) (*ValueSpec, error) {
	if existing, ok := def.(*ValueSpec); ok {
		if len(opts) > 0 {
			return nil, fmt.Errorf("%w: options must be empty when wrapping an existing ValueSpec", ErrInvalidSpec)
		}
		return existing.clone(), nil
	}
	spec := &ValueSpec{def: def}
	for _, opt := range opts {
		if opt != nil {
			opt(spec)
		}
	}
	if spec.allowed != nil && (spec.checkAll != nil || spec.checkAny != nil) {
		return nil, fmt.Errorf("%w: allowed values and checks are mutually exclusive", ErrInvalidSpec)
	}
	for i, check := range spec.checkAll {
		if check == nil {
			return nil, fmt.Errorf("%w: check_all[%d] is not callable", ErrInvalidSpec, i)
		}
	}
	for i, check := range spec.checkAny {
		if check == nil {
			return nil, fmt.Errorf("%w: check_any[%d] is not callable", ErrInvalidSpec, i)
		}
	}
	for i, typ := range spec.types {
		if typ == nil {
			return nil, fmt.Errorf("%w: type[%d] is nil", ErrInvalidSpec, i)
		}
	}
	return spec, nil
}

// MustValueSpec is NewValueSpec that panics on error, for package-level
// schema declarations.
func MustValueSpec(def any, opts ...SpecOption) *ValueSpec {
	spec, err := NewValueSpec(def, opts...)
	if err != nil {
		panic(err)
	}
	return spec
}

// Default returns the literal, expression, or rule used as default.
func (s *ValueSpec) Default() any { return s.def }

// Doc returns the documentation string.
func (s *ValueSpec) Doc() string { return s.doc }

// Types returns the declared types, nil when unrestricted.
func (s *ValueSpec) Types() []reflect.Type { return slices.Clone(s.types) }

// Allowed returns the allowed set, nil when unrestricted.
func (s *ValueSpec) Allowed() []any { return slices.Clone(s.allowed) }

// WithDefault returns a copy of s with a different default, keeping doc,
// types and validators.
func (s *ValueSpec) WithDefault(def any) *ValueSpec {
	out := s.clone()
	out.def = def
	return out
}

// Equal compares two specs structurally over default, doc, allowed values and
// both predicate groups. Funcs compare by identity.
func (s *ValueSpec) Equal(other *ValueSpec) bool {
	if s == nil || other == nil {
		return s == other
	}
	return valuesEqual(s.def, other.def) &&
		s.doc == other.doc &&
		slices.EqualFunc(s.allowed, other.allowed, valuesEqual) &&
		predicatesEqual(s.checkAll, other.checkAll) &&
		predicatesEqual(s.checkAny, other.checkAny)
}

func (s *ValueSpec) clone() *ValueSpec {
	return &ValueSpec{
		def:      s.def,
		doc:      s.doc,
		types:    slices.Clone(s.types),
		allowed:  slices.Clone(s.allowed),
		checkAll: slices.Clone(s.checkAll),
		checkAny: slices.Clone(s.checkAny),
	}
}

func (s *ValueSpec) String() string {
	return fmt.Sprintf("ValueSpec(%v, doc=%q, types=%v, allowed=%v, check_all=%d, check_any=%d)",
		describeDefault(s.def), s.doc, s.types, s.allowed, len(s.checkAll), len(s.checkAny))
}

func predicatesEqual(a, b []Predicate) bool {
	return slices.EqualFunc(a, b, func(x, y Predicate) bool {
		return funcIdentity(x) == funcIdentity(y)
	})
}

func funcIdentity(fn any) uintptr {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return 0
	}
	return rv.Pointer()
}

func describeDefault(def any) string {
	switch typed := def.(type) {
	case Rule:
		return typed.String()
	case nil:
		return "<nil>"
	}
	if reflect.TypeOf(def).Kind() == reflect.Func {
		return "<expression>"
	}
	return fmt.Sprintf("%v", def)
}
