package optfactory

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-optfactory/internal/numeric"
)

func ref(name string) Expression {
	return func(o Resolver) (any, error) {
		return o.Get(name)
	}
}

// sum adds the named options, returning float64 when any operand is a float.
func sum(names ...string) Expression {
	return func(o Resolver) (any, error) {
		total, isFloat := 0.0, false
		for _, name := range names {
			value, err := o.Get(name)
			if err != nil {
				return nil, err
			}
			f, ok := numeric.ToFloat64(value)
			if !ok {
				return nil, errors.New("not a number: " + name)
			}
			total += f
			isFloat = isFloat || numeric.IsFloat(value)
		}
		if isFloat {
			return total, nil
		}
		return int(total), nil
	}
}

func plus(name string, n int) Expression {
	return func(o Resolver) (any, error) {
		value, err := o.Get(name)
		if err != nil {
			return nil, err
		}
		if f, ok := value.(float64); ok {
			return f + float64(n), nil
		}
		i, ok := value.(int)
		if !ok {
			return nil, errors.New("not a number: " + name)
		}
		return i + n, nil
	}
}

func below(limit int) Predicate {
	return func(value any) bool {
		f, ok := numeric.ToFloat64(value)
		return ok && f < float64(limit)
	}
}

func positive(value any) bool {
	f, ok := numeric.ToFloat64(value)
	return ok && f > 0
}

// sampleFactory mirrors the canonical a..h schema. d sums dTerms.
func sampleFactory(t *testing.T, dTerms ...string) *Factory {
	t.Helper()
	factory, err := New(
		Field("a", 1),
		Field("b", ref("a")),
		Field("c", func(o Resolver) (any, error) { return o.Get("a") }),
		Field("d", sum(dTerms...)),
		Field("e", MustValueSpec("b", WithType(Int))),
		Field("f", MustValueSpec(2.0, WithDoc("option f"), WithType(Float), WithAllowed(2.0, 3.0))),
		Field("g", MustValueSpec(11, WithDoc("option g"), WithType(Int), WithCheckAll(positive, below(20)))),
		Field("h", MustValueSpec(plus("a", 2), WithDoc("option h"), WithType(Int), WithCheckAll(positive, below(20)))),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return factory
}

type getter interface {
	Get(name string) (any, error)
}

func assertValues(t *testing.T, o getter, want map[string]any) {
	t.Helper()
	for name, expected := range want {
		got, err := o.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if !cmp.Equal(expected, got) {
			t.Fatalf("Get(%q) = %#v, want %#v", name, got, expected)
		}
	}
}
