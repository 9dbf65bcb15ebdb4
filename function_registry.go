package optfactory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// ErrInvalidFunction is returned when a rule helper cannot be registered.
var ErrInvalidFunction = errors.New("optfactory: invalid function")

// Function is a helper callable from rule sources.
type Function func(args ...any) (any, error)

// FunctionRegistry stores rule helpers keyed by case-insensitive name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name, rejecting duplicates. Names must be plain
// identifiers so every engine can call them, and parent is reserved for
// reaching the enclosing section.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("%w: %q is nil", ErrInvalidFunction, name)
	}
	if !isIdentifier(name) {
		return fmt.Errorf("%w: %q is not an identifier", ErrInvalidFunction, name)
	}
	if strings.EqualFold(name, parentKey) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFunction, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("%w: %q already registered", ErrInvalidFunction, name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("optfactory: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("optfactory: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// WithFunctionRegistry makes the registry's helpers callable from every rule.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *factoryConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers a single helper under name.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *factoryConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		} else {
			cfg.functions = cfg.functions.Clone()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
