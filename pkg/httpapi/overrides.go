package httpapi

import (
	"sync"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/layering"
)

// PriorityAPI ranks the runtime layer above command line overrides.
const PriorityAPI = optfactory.PriorityCLI + 100

// LayerName names the runtime layer in traces and activity events.
const LayerName = "api"

// Overrides holds the values written through the API. It is meant to be the
// strongest layer of the stack a reload.Loader builds.
type Overrides struct {
	// write serializes Replace and Merge across compute, reload and restore.
	write  sync.Mutex
	mu     sync.RWMutex
	values map[string]any
}

// NewOverrides returns an empty runtime layer.
func NewOverrides() *Overrides {
	return &Overrides{values: map[string]any{}}
}

// Values returns a copy of the current overrides.
func (o *Overrides) Values() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return layering.Clone(o.values)
}

// Layer returns the overrides as a stack layer.
func (o *Overrides) Layer() optfactory.Layer {
	return optfactory.NewLayer(LayerName, PriorityAPI, o.Values(),
		optfactory.WithLayerLabel("HTTP API"),
		optfactory.WithLayerSource("PUT /options"),
	)
}

// Replace swaps in values and runs reload. When reload fails the previous
// values are restored and the error returned.
func (o *Overrides) Replace(values map[string]any, reload func() error) error {
	o.write.Lock()
	defer o.write.Unlock()
	return o.swap(layering.Clone(values), reload)
}

// Merge layers values over the current overrides and runs reload, restoring
// the previous values when reload fails.
func (o *Overrides) Merge(values map[string]any, reload func() error) error {
	o.write.Lock()
	defer o.write.Unlock()
	return o.swap(layering.MergeMaps(values, o.Values()), reload)
}

// swap must be called with o.write held.
func (o *Overrides) swap(next map[string]any, reload func() error) error {
	if next == nil {
		next = map[string]any{}
	}
	o.mu.Lock()
	previous := o.values
	o.values = next
	o.mu.Unlock()

	if reload == nil {
		return nil
	}
	if err := reload(); err != nil {
		o.mu.Lock()
		o.values = previous
		o.mu.Unlock()
		return err
	}
	return nil
}
