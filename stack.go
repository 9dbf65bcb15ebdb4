package optfactory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-optfactory/layering"
	"github.com/goliatone/go-optfactory/pkg/activity"
)

// Layer is one named source of explicit values, such as a system file, a
// user file or command line flags. Higher priority values win.
type Layer struct {
	Name     string
	Label    string
	Priority int
	Source   string
	Values   map[string]any
}

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithLayerLabel sets a human-friendly label.
func WithLayerLabel(label string) LayerOption {
	return func(layer *Layer) {
		layer.Label = label
	}
}

// WithLayerSource records where the values were loaded from, e.g. a file
// path.
func WithLayerSource(source string) LayerOption {
	return func(layer *Layer) {
		layer.Source = source
	}
}

// NewLayer constructs a Layer holding a deep copy of values.
func NewLayer(name string, priority int, values map[string]any, opts ...LayerOption) Layer {
	layer := Layer{
		Name:     name,
		Priority: priority,
		Values:   layering.Clone(values),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&layer)
	}
	return layer
}

func (l Layer) clone() Layer {
	out := l
	out.Values = layering.Clone(l.Values)
	return out
}

var (
	// ErrLayerNameRequired indicates a missing layer name.
	ErrLayerNameRequired = errors.New("optfactory: layer name must be provided")
	// ErrDuplicateLayerName indicates two layers sharing a name.
	ErrDuplicateLayerName = errors.New("optfactory: layer names must be unique")
	// ErrPriorityOrder indicates two layers sharing a priority.
	ErrPriorityOrder = errors.New("optfactory: layer priorities must be strictly ordered")
	// ErrEmptyStack indicates a merge of a stack without layers.
	ErrEmptyStack = errors.New("optfactory: stack must include at least one layer")
)

// Stack is an immutable set of layers ordered from strongest to weakest.
type Stack struct {
	layers []Layer
}

// NewStack validates the layers and sorts them strongest first.
func NewStack(layers ...Layer) (*Stack, error) {
	seen := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		if strings.TrimSpace(layer.Name) == "" {
			return nil, ErrLayerNameRequired
		}
		if _, ok := seen[layer.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLayerName, layer.Name)
		}
		seen[layer.Name] = struct{}{}
		copied[i] = layer.clone()
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Priority == copied[j].Priority {
			return copied[i].Name < copied[j].Name
		}
		return copied[i].Priority > copied[j].Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Priority <= copied[i].Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Priority)
		}
	}

	return &Stack{layers: copied}, nil
}

// Layers returns copies of the layers, strongest first.
func (s *Stack) Layers() []Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].clone()
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge composes the layers into one override mapping. Nested maps merge key
// by key.
func (s *Stack) Merge() (map[string]any, error) {
	if s.Len() == 0 {
		return nil, ErrEmptyStack
	}
	values := make([]map[string]any, len(s.layers))
	for i := range s.layers {
		values[i] = s.layers[i].Values
	}
	return layering.MergeMaps(values...), nil
}

// Trace reports which layers define a dotted path, strongest first. Value
// and Source come from the strongest layer that defines it.
func (s *Stack) Trace(path string) Trace {
	trace := Trace{Path: path}
	segments := strings.Split(path, ".")
	for _, layer := range s.layers {
		value, found := layering.Lookup(layer.Values, segments)
		entry := Provenance{Layer: layer.Name, Priority: layer.Priority, Source: layer.Source, Found: found}
		if found {
			entry.Value = layering.CloneAny(value)
			if trace.Source == "" {
				trace.Source = layer.Name
				trace.Value = entry.Value
			}
		}
		trace.Layers = append(trace.Layers, entry)
	}
	return trace
}

// CreateMutableFromStack merges the stack and uses the result as explicit
// values. Each layer is reported to the activity hooks.
func (f *Factory) CreateMutableFromStack(stack *Stack) (*MutableOptions, error) {
	merged, err := stack.Merge()
	if err != nil {
		return nil, err
	}
	m, err := f.CreateMutable(merged)
	if err != nil {
		return nil, err
	}
	for _, layer := range stack.layers {
		m.rt.emit(activity.BuildLayerAppliedEvent(activity.OptionEventInput{
			ObjectID: m.rt.id,
			Layer:    activity.LayerContext{Name: layer.Name, Priority: layer.Priority},
			Metadata: map[string]any{"source": layer.Source, "keys": len(layer.Values)},
		}))
	}
	return m, nil
}

// CreateFromStack is CreateMutableFromStack followed by Freeze.
func (f *Factory) CreateFromStack(stack *Stack) (*Options, error) {
	m, err := f.CreateMutableFromStack(stack)
	if err != nil {
		return nil, err
	}
	return m.Freeze()
}
