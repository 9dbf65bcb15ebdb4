//go:build js_eval

package optfactory

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSEvaluator constructs an Evaluator backed by goja. The rule runs inside
// a with block over the section, so bare option names resolve lazily.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	o := collectJSOptions(opts)
	return &jsEvaluator{
		cache:    o.cache,
		registry: o.registry,
		timeout:  o.timeout,
	}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineJS, expression, ctx.Option, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, ctx.Option, err)
	}
	value, err := e.run(ctx, program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, ctx.Option, err)
	}
	return value, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	key := EngineJS + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapJSExpression(expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, program *goja.Program) (any, error) {
	vm := goja.New()
	state := &jsState{vm: vm}
	if ctx.Options != nil {
		vm.Set("__options", vm.NewDynamicObject(&jsSection{state: state, options: ctx.Options}))
	} else {
		vm.Set("__options", vm.NewObject())
	}
	for _, name := range e.registry.Names() {
		fn := name
		vm.Set(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, normalizeJSValue(arguments).([]any)...)
		})
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(fmt.Sprintf("rule exceeded %s", e.timeout))
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	if state.err != nil {
		return nil, state.err
	}
	if err != nil {
		return nil, err
	}
	return normalizeJSValue(value.Export()), nil
}

func wrapJSExpression(expression string) string {
	return fmt.Sprintf("with (__options) { (function(){ return (%s); })(); }", expression)
}

type jsState struct {
	vm  *goja.Runtime
	err error
}

// jsSection exposes a section to scripts. Reads that fail record the error
// and yield undefined; the evaluator reports the recorded error.
type jsSection struct {
	state   *jsState
	options Resolver
}

func (s *jsSection) Get(key string) goja.Value {
	if s.state.err != nil {
		return goja.Undefined()
	}
	if s.options.Contains(key) {
		if section, err := s.options.Section(key); err == nil {
			return s.state.vm.NewDynamicObject(&jsSection{state: s.state, options: section})
		}
		value, err := s.options.Get(key)
		if err != nil {
			s.state.err = err
			return goja.Undefined()
		}
		return s.state.vm.ToValue(value)
	}
	if key == parentKey && s.options.Parent() != nil {
		return s.state.vm.NewDynamicObject(&jsSection{state: s.state, options: s.options.Parent()})
	}
	return nil
}

func (s *jsSection) Set(string, goja.Value) bool { return false }

func (s *jsSection) Has(key string) bool {
	return s.options.Contains(key) || (key == parentKey && s.options.Parent() != nil)
}

func (s *jsSection) Delete(string) bool { return false }

func (s *jsSection) Keys() []string { return s.options.Keys() }

func normalizeJSValue(value any) any {
	switch typed := value.(type) {
	case int64:
		return int(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeJSValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeJSValue(item)
		}
		return out
	}
	return value
}

func jsEvaluatorAvailable() bool {
	return true
}
