package optfactory

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// StarlarkEvaluatorOption configures the Starlark evaluator.
type StarlarkEvaluatorOption func(*starlarkEvaluator)

// StarlarkWithProgramCache wires a ProgramCache into the Starlark evaluator.
// The cache keeps the identifiers each expression references.
func StarlarkWithProgramCache(cache ProgramCache) StarlarkEvaluatorOption {
	return func(e *starlarkEvaluator) {
		e.cache = cache
	}
}

// StarlarkWithFunctionRegistry exposes registry helpers as builtins.
func StarlarkWithFunctionRegistry(registry *FunctionRegistry) StarlarkEvaluatorOption {
	return func(e *starlarkEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type starlarkEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewStarlarkEvaluator constructs an Evaluator backed by go.starlark.net.
// Options the expression names are bound before it runs; sections are
// exposed as structs whose fields resolve on access.
func NewStarlarkEvaluator(opts ...StarlarkEvaluatorOption) Evaluator {
	e := &starlarkEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *starlarkEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineStarlark, expression, ctx.Option, fmt.Errorf("expression must not be empty"))
	}
	names, err := e.identifiers(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineStarlark, expression, ctx.Option, err)
	}

	state := &starlarkState{}
	env := starlark.StringDict{}
	for _, name := range e.registry.Names() {
		env[name] = e.builtin(name)
	}
	if ctx.Options != nil {
		for _, name := range names {
			value, ok := state.bind(ctx.Options, name)
			if state.err != nil {
				return nil, wrapEvaluationError(EngineStarlark, expression, ctx.Option, state.err)
			}
			if ok {
				env[name] = value
			}
		}
	}

	thread := &starlark.Thread{Name: ctx.Option, Print: func(*starlark.Thread, string) {}}
	result, err := starlark.Eval(thread, ctx.Option, expression, env)
	if state.err != nil {
		return nil, wrapEvaluationError(EngineStarlark, expression, ctx.Option, state.err)
	}
	if err != nil {
		return nil, wrapEvaluationError(EngineStarlark, expression, ctx.Option, err)
	}
	value, err := fromStarlark(result)
	if err != nil {
		return nil, wrapEvaluationError(EngineStarlark, expression, ctx.Option, err)
	}
	return value, nil
}

// identifiers lists the free names of expression, parsing it once per cache.
func (e *starlarkEvaluator) identifiers(expression string) ([]string, error) {
	key := EngineStarlark + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if names, ok := cached.([]string); ok {
				return names, nil
			}
		}
	}
	expr, err := syntax.ParseExpr("", expression, 0)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	syntax.Walk(expr, func(node syntax.Node) bool {
		if ident, ok := node.(*syntax.Ident); ok {
			seen[ident.Name] = true
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	if e.cache != nil {
		e.cache.Set(key, names)
	}
	return names, nil
}

func (e *starlarkEvaluator) builtin(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: keyword arguments are not supported", name)
		}
		native := make([]any, 0, len(args))
		for _, arg := range args {
			value, err := fromStarlark(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			native = append(native, value)
		}
		result, err := e.registry.Call(name, native...)
		if err != nil {
			return nil, err
		}
		return toStarlark(result)
	})
}

// starlarkState keeps the first resolution error so graph errors surface
// unchanged instead of as Starlark attribute errors.
type starlarkState struct {
	err error
}

func (s *starlarkState) bind(options Resolver, name string) (starlark.Value, bool) {
	switch {
	case options.Contains(name):
		if section, err := options.Section(name); err == nil {
			return &starlarkSection{state: s, options: section}, true
		}
		value, err := options.Get(name)
		if err != nil {
			s.err = err
			return nil, false
		}
		converted, err := toStarlark(value)
		if err != nil {
			s.err = err
			return nil, false
		}
		return converted, true
	case name == parentKey && options.Parent() != nil:
		return &starlarkSection{state: s, options: options.Parent()}, true
	}
	return nil, false
}

// starlarkSection exposes a section as an attribute-bearing value.
type starlarkSection struct {
	state   *starlarkState
	options Resolver
}

var _ starlark.HasAttrs = (*starlarkSection)(nil)

func (s *starlarkSection) String() string        { return fmt.Sprintf("section(%v)", s.options.Keys()) }
func (s *starlarkSection) Type() string          { return "section" }
func (s *starlarkSection) Freeze()               {}
func (s *starlarkSection) Truth() starlark.Bool  { return starlark.Bool(len(s.options.Keys()) > 0) }
func (s *starlarkSection) AttrNames() []string   { return s.options.Keys() }
func (s *starlarkSection) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: section") }

func (s *starlarkSection) Attr(name string) (starlark.Value, error) {
	value, ok := s.state.bind(s.options, name)
	if s.state.err != nil {
		return nil, s.state.err
	}
	if !ok {
		return nil, nil
	}
	return value, nil
}

func toStarlark(value any) (starlark.Value, error) {
	switch typed := value.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(typed), nil
	case int:
		return starlark.MakeInt(typed), nil
	case int64:
		return starlark.MakeInt64(typed), nil
	case uint:
		return starlark.MakeUint(typed), nil
	case float64:
		return starlark.Float(typed), nil
	case float32:
		return starlark.Float(typed), nil
	case string:
		return starlark.String(typed), nil
	case []any:
		items := make([]starlark.Value, len(typed))
		for i, item := range typed {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = converted
		}
		return starlark.NewList(items), nil
	case map[string]any:
		dict := starlark.NewDict(len(typed))
		for key, item := range typed {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(key), converted); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("unsupported type %T", value)
}

// fromStarlark converts results into the Go values options hold. Integers
// become int.
func fromStarlark(value starlark.Value) (any, error) {
	switch typed := value.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(typed), nil
	case starlark.Int:
		i, ok := typed.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", typed)
		}
		return int(i), nil
	case starlark.Float:
		return float64(typed), nil
	case starlark.String:
		return string(typed), nil
	case *starlark.List:
		out := make([]any, typed.Len())
		for i := 0; i < typed.Len(); i++ {
			item, err := fromStarlark(typed.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, len(typed))
		for i, item := range typed {
			converted, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, typed.Len())
		for _, item := range typed.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", item[0])
			}
			converted, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(key)] = converted
		}
		return out, nil
	case *starlarkSection:
		return sectionValues(typed.options)
	}
	return nil, fmt.Errorf("unsupported starlark type %s", value.Type())
}
