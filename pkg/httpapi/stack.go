package httpapi

import (
	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/pkg/reload"
)

// StackFunc builds the layers the API resolves, typically from values files.
type StackFunc func() (*optfactory.Stack, error)

// Stack returns a StackFunc that adds the runtime layer on top of build.
func (o *Overrides) Stack(build StackFunc) StackFunc {
	return func() (*optfactory.Stack, error) {
		var layers []optfactory.Layer
		if build != nil {
			base, err := build()
			if err != nil {
				return nil, err
			}
			layers = base.Layers()
		}
		return optfactory.NewStack(append(layers, o.Layer())...)
	}
}

// Loader resolves the stack into a snapshot on every reload.
func Loader(factory *optfactory.Factory, build StackFunc) reload.Loader {
	return func() (*optfactory.Options, error) {
		stack, err := build()
		if err != nil {
			return nil, err
		}
		return factory.CreateFromStack(stack)
	}
}

// Tracer explains a path against a freshly built stack. The winning layer
// replaces the explicit source.
func Tracer(factory *optfactory.Factory, build StackFunc) func(path string) (optfactory.Trace, error) {
	return func(path string) (optfactory.Trace, error) {
		stack, err := build()
		if err != nil {
			return optfactory.Trace{}, err
		}
		opts, err := factory.CreateMutableFromStack(stack)
		if err != nil {
			return optfactory.Trace{}, err
		}
		trace, err := opts.Trace(path)
		if err != nil {
			return optfactory.Trace{}, err
		}
		layered := stack.Trace(path)
		trace.Layers = layered.Layers
		if layered.Source != "" {
			trace.Source = layered.Source
		}
		return trace, nil
	}
}
