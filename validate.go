package optfactory

import (
	"reflect"
	"slices"

	"github.com/goliatone/go-optfactory/internal/numeric"
)

// Validate applies the declared types, allowed set and predicate groups to
// value, returning the value to store. Numbers are widened to float64 when the
// declared types include Float and not the number's own type. name only
// decorates errors.
func (s *ValueSpec) Validate(name string, value any) (any, error) {
	if s == nil {
		return value, nil
	}
	if len(s.types) > 0 {
		value = widen(value, s.types)
		if !typeAllowed(value, s.types) {
			return nil, optionError("validate", name, value, ErrTypeMismatch)
		}
	}
	if s.allowed != nil && !slices.ContainsFunc(s.allowed, func(candidate any) bool {
		return valuesEqual(candidate, value)
	}) {
		return nil, optionError("validate", name, value, ErrNotAllowed)
	}
	if s.checkAll != nil {
		for _, check := range s.checkAll {
			if !check(value) {
				return nil, optionError("validate", name, value, ErrCheckFailed)
			}
		}
	}
	if s.checkAny != nil && !slices.ContainsFunc(s.checkAny, func(check Predicate) bool {
		return check(value)
	}) {
		return nil, optionError("validate", name, value, ErrCheckFailed)
	}
	return value, nil
}

func widen(value any, types []reflect.Type) any {
	if !slices.Contains(types, Float) || !numeric.IsNumber(value) {
		return value
	}
	if slices.Contains(types, reflect.TypeOf(value)) {
		return value
	}
	widened, _ := numeric.ToFloat64(value)
	return widened
}

func typeAllowed(value any, types []reflect.Type) bool {
	if value == nil {
		return slices.Contains(types, Nil)
	}
	return slices.Contains(types, reflect.TypeOf(value))
}

func valuesEqual(a, b any) bool {
	if eq, ok := numeric.Equal(a, b); ok {
		return eq
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a).Kind() == reflect.Func || reflect.TypeOf(b).Kind() == reflect.Func {
		return funcIdentity(a) == funcIdentity(b)
	}
	return reflect.DeepEqual(a, b)
}
