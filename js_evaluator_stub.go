//go:build !js_eval

package optfactory

// NewJSEvaluator returns nil without the js_eval build tag; rules for the js
// engine then fail with ErrNoEvaluator.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
