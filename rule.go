package optfactory

import "fmt"

// Engine names understood by the built-in evaluators.
const (
	EngineExpr     = "expr"
	EngineCEL      = "cel"
	EngineJS       = "js"
	EngineStarlark = "starlark"
)

// Rule is a default written in an expression language. Identifiers in the
// source resolve lazily against the section the option lives in: a bare name
// reads that option, section.key descends into a subsection, and parent.key
// reaches the enclosing section.
type Rule struct {
	Engine string
	Source string
}

// Expr returns a Rule evaluated with github.com/expr-lang/expr.
func Expr(source string) Rule { return Rule{Engine: EngineExpr, Source: source} }

// CEL returns a Rule evaluated with github.com/google/cel-go.
func CEL(source string) Rule { return Rule{Engine: EngineCEL, Source: source} }

// JS returns a Rule evaluated with github.com/dop251/goja. Requires the
// js_eval build tag.
func JS(source string) Rule { return Rule{Engine: EngineJS, Source: source} }

// Starlark returns a Rule evaluated with go.starlark.net.
func Starlark(source string) Rule { return Rule{Engine: EngineStarlark, Source: source} }

func (r Rule) String() string {
	return fmt.Sprintf("%s(%q)", r.Engine, r.Source)
}

// RuleContext carries what an Evaluator needs to run one rule.
type RuleContext struct {
	// Options is the section the option being resolved belongs to.
	Options Resolver
	// Option is the qualified name of the option being resolved.
	Option string
}

// Evaluator executes rule sources against a RuleContext.
type Evaluator interface {
	Evaluate(ctx RuleContext, expression string) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx RuleContext, expression string) (any, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx RuleContext, expression string) (any, error) {
	return f(ctx, expression)
}

const parentKey = "parent"

// bindPath resolves one identifier path into env, descending through
// subsections and the parent link. Segments after the first leaf option are
// left to the expression language as field access on the resolved value.
func bindPath(env map[string]any, options Resolver, path []string) error {
	current := env
	for i, segment := range path {
		last := i == len(path)-1
		var next Resolver
		switch {
		case options.Contains(segment):
			if section, err := options.Section(segment); err == nil {
				next = section
				break
			}
			value, err := options.Get(segment)
			if err != nil {
				return err
			}
			current[segment] = value
			return nil
		case segment == parentKey && options.Parent() != nil:
			next = options.Parent()
		default:
			return nil
		}
		child, ok := current[segment].(map[string]any)
		if !ok {
			child = map[string]any{}
			current[segment] = child
		}
		if last {
			values, err := sectionValues(next)
			if err != nil {
				return err
			}
			for key, value := range values {
				child[key] = value
			}
			return nil
		}
		current, options = child, next
	}
	return nil
}

// bindName resolves a single top-level identifier the way bindPath does when
// the identifier is used on its own.
func bindName(options Resolver, name string) (any, bool, error) {
	env := map[string]any{}
	if err := bindPath(env, options, []string{name}); err != nil {
		return nil, false, err
	}
	value, ok := env[name]
	return value, ok, nil
}

func sectionValues(options Resolver) (map[string]any, error) {
	out := make(map[string]any, len(options.Keys()))
	for _, key := range options.Keys() {
		if section, err := options.Section(key); err == nil {
			values, err := sectionValues(section)
			if err != nil {
				return nil, err
			}
			out[key] = values
			continue
		}
		value, err := options.Get(key)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}
