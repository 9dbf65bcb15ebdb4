package optfactory

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFunctionRegistryRegister(t *testing.T) {
	noop := func(...any) (any, error) { return nil, nil }
	registry := NewFunctionRegistry()
	if err := registry.Register("Clamp", noop); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name string
		fn   Function
	}{
		{"", noop},
		{"nil_fn", nil},
		{"clamp", noop},
		{"with-dash", noop},
		{"9lives", noop},
		{"Parent", noop},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := registry.Register(tc.name, tc.fn); !errors.Is(err, ErrInvalidFunction) {
				t.Fatalf("expected ErrInvalidFunction, got %v", err)
			}
		})
	}

	if diff := cmp.Diff([]string{"clamp"}, registry.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctionRegistryCallAndClone(t *testing.T) {
	registry := NewFunctionRegistry()
	_ = registry.Register("first", func(args ...any) (any, error) { return args[0], nil })

	clone := registry.Clone()
	_ = clone.Register("second", func(...any) (any, error) { return 2, nil })

	got, err := registry.Call("FIRST", "x")
	if err != nil || got != "x" {
		t.Fatalf("expected case-insensitive call, got %v err=%v", got, err)
	}
	if _, err := registry.Call("second"); err == nil {
		t.Fatalf("expected clone registrations to stay out of the original")
	}

	var missing *FunctionRegistry
	if _, err := missing.Call("first"); err == nil {
		t.Fatalf("expected error from nil registry")
	}
	if missing.Names() != nil || missing.Clone() != nil {
		t.Fatalf("expected nil registry to report nothing")
	}
}
