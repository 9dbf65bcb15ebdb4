package optfactory

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	celref "github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/interpreter"
)

// celArities bounds the overloads declared for registry helpers.
const celArities = 4

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Helpers are declared with up to four dynamic arguments.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Every option of
// the section is declared as a dyn variable, along with parent; values are
// only resolved when the program reads them.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Option, fmt.Errorf("expression must not be empty"))
	}
	var keys []string
	if ctx.Options != nil {
		keys = ctx.Options.Keys()
	}
	program, err := e.loadOrCompile(expression, keys)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Option, err)
	}
	activation := &celActivation{options: ctx.Options}
	out, _, err := program.Eval(activation)
	if activation.err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Option, activation.err)
	}
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Option, err)
	}
	value, err := celToNative(out)
	if activation.err != nil {
		err = activation.err
	}
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, ctx.Option, err)
	}
	return value, nil
}

func (e *celEvaluator) loadOrCompile(expression string, keys []string) (celgo.Program, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	key := EngineCEL + ":" + strings.Join(sorted, ",") + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(sorted)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv(keys []string) (*celgo.Env, error) {
	opts := make([]celgo.EnvOption, 0, len(keys)+1)
	declared := map[string]bool{}
	for _, key := range append(keys, parentKey) {
		if declared[key] {
			continue
		}
		declared[key] = true
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	for _, name := range e.registry.Names() {
		var overloads []celgo.FunctionOpt
		for arity := 0; arity < celArities; arity++ {
			args := make([]*celgo.Type, arity)
			for i := range args {
				args[i] = celgo.DynType
			}
			overloads = append(overloads, celgo.Overload(
				fmt.Sprintf("%s_dyn_%d", name, arity),
				args,
				celgo.DynType,
				celgo.FunctionBinding(e.binding(name)),
			))
		}
		opts = append(opts, celgo.Function(name, overloads...))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) binding(name string) func(values ...celref.Val) celref.Val {
	return func(values ...celref.Val) celref.Val {
		args := make([]any, 0, len(values))
		for _, val := range values {
			native, err := celToNative(val)
			if err != nil {
				return types.NewErr("optfactory: %s: %v", name, err)
			}
			args = append(args, native)
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("optfactory: %s: %v", name, err)
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

// celActivation resolves variables on demand. The first resolution error is
// kept so graph errors (cycles, validation) surface unchanged instead of as
// CEL attribute errors.
type celActivation struct {
	options Resolver
	err     error
}

func (a *celActivation) ResolveName(name string) (any, bool) {
	if a.err != nil || a.options == nil {
		return nil, false
	}
	switch {
	case a.options.Contains(name):
		if section, err := a.options.Section(name); err == nil {
			return &celSection{activation: a, options: section}, true
		}
		value, err := a.options.Get(name)
		if err != nil {
			a.err = err
			return nil, false
		}
		if value == nil {
			return types.NullValue, true
		}
		return value, true
	case name == parentKey && a.options.Parent() != nil:
		return &celSection{activation: a, options: a.options.Parent()}, true
	}
	return nil, false
}

func (a *celActivation) Parent() interpreter.Activation { return nil }

// celSection exposes a section as a CEL map whose entries resolve lazily.
type celSection struct {
	activation *celActivation
	options    Resolver
}

var _ traits.Mapper = (*celSection)(nil)

func (s *celSection) values() (map[string]any, error) {
	values, err := sectionValues(s.options)
	if err != nil && s.activation.err == nil {
		s.activation.err = err
	}
	return values, err
}

func (s *celSection) ConvertToNative(typeDesc reflect.Type) (any, error) {
	values, err := s.values()
	if err != nil {
		return nil, err
	}
	return types.DefaultTypeAdapter.NativeToValue(values).ConvertToNative(typeDesc)
}

func (s *celSection) ConvertToType(typeVal celref.Type) celref.Val {
	switch typeVal {
	case types.MapType:
		return s
	case types.TypeType:
		return types.MapType
	}
	return types.NewErr("type conversion error from map to '%s'", typeVal)
}

func (s *celSection) Equal(other celref.Val) celref.Val {
	if section, ok := other.(*celSection); ok {
		return types.Bool(section.options == s.options)
	}
	values, err := s.values()
	if err != nil {
		return types.NewErr("%v", err)
	}
	return types.DefaultTypeAdapter.NativeToValue(values).Equal(other)
}

func (s *celSection) Type() celref.Type { return types.MapType }

func (s *celSection) Value() any {
	values, _ := s.values()
	return values
}

func (s *celSection) Contains(key celref.Val) celref.Val {
	name, ok := key.(types.String)
	if !ok {
		return types.False
	}
	return types.Bool(s.options.Contains(string(name)))
}

func (s *celSection) Get(key celref.Val) celref.Val {
	value, found := s.Find(key)
	if !found && value == nil {
		return types.NewErr("no such key: %v", key)
	}
	return value
}

func (s *celSection) Find(key celref.Val) (celref.Val, bool) {
	name, ok := key.(types.String)
	if !ok {
		return types.NewErr("unsupported key type: %s", key.Type()), false
	}
	if !s.options.Contains(string(name)) {
		return nil, false
	}
	if section, err := s.options.Section(string(name)); err == nil {
		return &celSection{activation: s.activation, options: section}, true
	}
	value, err := s.options.Get(string(name))
	if err != nil {
		if s.activation.err == nil {
			s.activation.err = err
		}
		return types.NewErr("%v", err), false
	}
	return types.DefaultTypeAdapter.NativeToValue(value), true
}

func (s *celSection) Iterator() traits.Iterator {
	keys := s.options.Keys()
	converted := make([]celref.Val, len(keys))
	for i, key := range keys {
		converted[i] = types.String(key)
	}
	return types.NewRefValList(types.DefaultTypeAdapter, converted).Iterator()
}

func (s *celSection) Size() celref.Val { return types.Int(len(s.options.Keys())) }

// celToNative converts a CEL result into the Go values options hold: int64
// becomes int, lists and maps are converted recursively.
func celToNative(val celref.Val) (any, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case *types.Err:
		return nil, errors.New(v.String())
	case types.Null:
		return nil, nil
	case types.Int:
		return int(v), nil
	case types.Uint:
		return uint(v), nil
	case *celSection:
		return v.values()
	case traits.Mapper:
		out := map[string]any{}
		for it := v.Iterator(); it.HasNext() == types.True; {
			key := it.Next()
			native, err := celToNative(v.Get(key))
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(key.Value())] = native
		}
		return out, nil
	case traits.Lister:
		size, _ := v.Size().(types.Int)
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			native, err := celToNative(v.Get(i))
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	}
	return val.Value(), nil
}
