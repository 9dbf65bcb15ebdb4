package optfactory

import (
	"reflect"

	"github.com/goliatone/go-optfactory/pkg/activity"
)

// Resolver is the read-only view of a section handed to default expressions.
// Reads made through a Resolver take part in circular definition detection
// for the evaluation that created it.
type Resolver interface {
	// Get resolves an option by name. Dotted names descend into subsections.
	Get(name string) (any, error)
	// Section returns the view of a subsection.
	Section(name string) (Resolver, error)
	// Parent returns the enclosing section, or nil at the root.
	Parent() Resolver
	// Contains reports whether name (dotted names allowed) is declared.
	Contains(name string) bool
	// Keys lists the declared names in schema order.
	Keys() []string
}

// Expression computes a default from other options.
type Expression func(o Resolver) (any, error)

// Predicate is a single check applied to a candidate value.
type Predicate func(value any) bool

// Item is a resolved name/value pair.
type Item struct {
	Name  string
	Value any
}

// Type helpers for ValueSpec declarations.
var (
	Int    = reflect.TypeOf(0)
	Float  = reflect.TypeOf(0.0)
	String = reflect.TypeOf("")
	Bool   = reflect.TypeOf(false)
	// Nil matches a nil value. No concrete value has the empty interface as
	// its dynamic type, so the interface type itself serves as the marker.
	Nil = reflect.TypeOf((*any)(nil)).Elem()
)

// TypeOf returns the reflect.Type of T for use with WithType.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Definition contributes to a Factory under construction: a named field, an
// included factory, or a configuration Option.
type Definition interface {
	define(b *builder) error
}

// Option configures evaluation behaviour shared by everything a Factory
// creates.
type Option func(*factoryConfig)

func (o Option) define(b *builder) error {
	if o != nil {
		o(&b.cfg)
	}
	return nil
}

type factoryConfig struct {
	evaluators    map[string]Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	logger        EvaluatorLogger
	activityHooks activity.Hooks

	schemaGenerator SchemaGenerator
}

func (cfg factoryConfig) clone() factoryConfig {
	out := cfg
	if len(cfg.evaluators) > 0 {
		out.evaluators = make(map[string]Evaluator, len(cfg.evaluators))
		for engine, evaluator := range cfg.evaluators {
			out.evaluators[engine] = evaluator
		}
	}
	out.activityHooks = cloneActivityHooks(cfg.activityHooks)
	return out
}

func (cfg factoryConfig) evaluatorLogger() EvaluatorLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopEvaluatorLogger{}
}

// WithEvaluator registers evaluator for rules of the given engine, replacing
// the built-in evaluator for that engine.
func WithEvaluator(engine string, evaluator Evaluator) Option {
	return func(cfg *factoryConfig) {
		if evaluator == nil {
			return
		}
		if cfg.evaluators == nil {
			cfg.evaluators = map[string]Evaluator{}
		}
		cfg.evaluators[engine] = evaluator
	}
}
