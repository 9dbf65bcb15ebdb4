package optfactory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-optfactory/pkg/activity"
)

// runtime is shared by every section of one options tree.
type runtime struct {
	cfg     factoryConfig
	id      string
	emitter *activity.Emitter

	mu    sync.Mutex
	built map[string]Evaluator
}

func newRuntime(cfg factoryConfig) *runtime {
	return &runtime{
		cfg: cfg,
		id:  uuid.NewString(),
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled: true,
			Channel: activity.DefaultChannel,
		}),
		built: map[string]Evaluator{},
	}
}

func (r *runtime) evaluator(engine string) (Evaluator, error) {
	if evaluator, ok := r.cfg.evaluators[engine]; ok {
		return evaluator, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if evaluator, ok := r.built[engine]; ok {
		return evaluator, nil
	}
	var evaluator Evaluator
	switch engine {
	case EngineExpr:
		evaluator = NewExprEvaluator(ExprWithProgramCache(r.cfg.programCache), ExprWithFunctionRegistry(r.cfg.functions))
	case EngineCEL:
		evaluator = NewCELEvaluator(CELWithProgramCache(r.cfg.programCache), CELWithFunctionRegistry(r.cfg.functions))
	case EngineJS:
		evaluator = NewJSEvaluator(JSWithProgramCache(r.cfg.programCache), JSWithFunctionRegistry(r.cfg.functions))
	case EngineStarlark:
		evaluator = NewStarlarkEvaluator(StarlarkWithProgramCache(r.cfg.programCache), StarlarkWithFunctionRegistry(r.cfg.functions))
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	r.built[engine] = evaluator
	return evaluator, nil
}

func (r *runtime) emit(event activity.Event) {
	_ = r.emitter.Emit(context.Background(), event)
}

// Engines reported in traces and evaluator logs for non-rule defaults.
const (
	engineLiteral    = "literal"
	engineExpression = "func"
	engineReference  = "reference"
)

// evaluateDefault computes the default of the option name in view and
// validates it. It returns the engine that produced the value.
func evaluateDefault(rt *runtime, spec *ValueSpec, view *sectionView, name string) (any, string, error) {
	qualified := view.graph.qualified(name)
	var (
		value  any
		err    error
		engine = engineLiteral
		source string
	)
	start := time.Now()
	switch def := spec.def.(type) {
	case Expression:
		engine = engineExpression
		value, err = def(view)
	case func(Resolver) (any, error):
		engine = engineExpression
		value, err = def(view)
	case func(Resolver) any:
		engine = engineExpression
		value = def(view)
	case Rule:
		engine, source = def.Engine, def.Source
		var evaluator Evaluator
		evaluator, err = rt.evaluator(def.Engine)
		if err == nil {
			value, err = evaluator.Evaluate(RuleContext{Options: view, Option: qualified}, def.Source)
		}
		err = wrapEvaluationError(def.Engine, def.Source, qualified, err)
	case string:
		if isReference(spec) {
			engine, source = engineReference, def
			if !view.Contains(def) {
				err = optionError("default", qualified, def, ErrUnknownDefaultName)
				break
			}
			value, err = view.Get(def)
		} else {
			value = def
		}
	default:
		value = def
	}
	if err == nil {
		value, err = spec.Validate(qualified, value)
	}
	if engine != engineLiteral || err != nil {
		rt.cfg.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Option:   qualified,
			Expr:     source,
			Duration: time.Since(start),
			Err:      err,
		})
	}
	if err != nil {
		return nil, engine, err
	}
	return value, engine, nil
}

// isReference reports whether a string default names another option rather
// than being a literal: only when declared types exclude string.
func isReference(spec *ValueSpec) bool {
	return len(spec.types) > 0 && !slices.Contains(spec.types, String)
}
