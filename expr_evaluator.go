package optfactory

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator executes rules using github.com/expr-lang/expr. Only the
// identifiers a rule mentions are resolved, so reading an option never forces
// unrelated defaults.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

type exprProgram struct {
	program *exprvm.Program
	paths   [][]string
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles expression (or loads it from the cache) and runs it with
// the identifiers it references bound from ctx.Options.
func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluationError(EngineExpr, expression, ctx.Option, fmt.Errorf("expression must not be empty"))
	}
	compiled, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, ctx.Option, err)
	}
	env := map[string]any{}
	if ctx.Options != nil {
		for _, path := range compiled.paths {
			if err := bindPath(env, ctx.Options, path); err != nil {
				return nil, wrapEvaluationError(EngineExpr, expression, ctx.Option, err)
			}
		}
	}
	result, err := exprlang.Run(compiled.program, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, ctx.Option, err)
	}
	return result, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprProgram, error) {
	key := EngineExpr + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if compiled, ok := cached.(*exprProgram); ok {
				return compiled, nil
			}
		}
	}
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.registryFunction(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	compiled := &exprProgram{
		program: program,
		paths:   collectPaths(tree.Node),
	}
	if e.cache != nil {
		e.cache.Set(key, compiled)
	}
	return compiled, nil
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

// pathCollector gathers the maximal identifier chains (a, a.b, parent.a.b)
// found in a rule. ast.Walk visits children first, so member objects are
// marked as inner before their own candidates are filtered out.
type pathCollector struct {
	candidates []ast.Node
	paths      map[ast.Node][]string
	inner      map[ast.Node]bool
}

func collectPaths(root ast.Node) [][]string {
	collector := &pathCollector{
		paths: map[ast.Node][]string{},
		inner: map[ast.Node]bool{},
	}
	ast.Walk(&root, collector)
	var out [][]string
	seen := map[string]bool{}
	for _, node := range collector.candidates {
		if collector.inner[node] {
			continue
		}
		path := collector.paths[node]
		key := fmt.Sprint(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, path)
	}
	return out
}

func (c *pathCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.candidates = append(c.candidates, n)
		c.paths[n] = []string{n.Value}
	case *ast.MemberNode:
		base, ok := c.paths[n.Node]
		if !ok {
			return
		}
		c.inner[n.Node] = true
		path := append([]string(nil), base...)
		if property, ok := n.Property.(*ast.StringNode); ok && !n.Method {
			path = append(path, property.Value)
		}
		c.candidates = append(c.candidates, n)
		c.paths[n] = path
	}
}
