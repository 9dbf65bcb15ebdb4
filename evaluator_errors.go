package optfactory

import (
	"errors"
	"fmt"
)

// ErrNoEvaluator is returned when a Rule names an engine with no evaluator.
var ErrNoEvaluator = errors.New("optfactory: evaluator not configured")

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Option string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("optfactory: %s evaluator %s option=%s: %v", e.Engine, describeExpression(e.Expr), e.Option, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

// wrapEvaluationError decorates err with evaluator metadata. Errors raised by
// the options graph itself (cycles, validation, unknown names) pass through
// untouched so callers can match them directly.
func wrapEvaluationError(engine, expr, option string, err error) error {
	if err == nil {
		return nil
	}
	if isGraphError(err) {
		return err
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Option == "" {
			evalErr.Option = option
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Option: option,
		Err:    err,
	}
}

func isGraphError(err error) bool {
	var optErr *OptionError
	var cycle *CircularDefinitionError
	return errors.As(err, &optErr) || errors.As(err, &cycle)
}
