package openapi

import (
	"fmt"
	"strconv"
)

// componentRegistry publishes section schemas that appear more than once, or
// are forced, under #/components/schemas. Sections are counted in a first
// pass so every occurrence of a shared shape resolves to the same $ref.
type componentRegistry struct {
	entries   map[string]*componentEntry
	usedNames map[string]struct{}
}

type componentEntry struct {
	name   string
	schema map[string]any
	count  int
	force  bool
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		entries:   map[string]*componentEntry{},
		usedNames: map[string]struct{}{},
	}
}

// count walks node and its nested objects, recording how often each shape
// occurs. path names the first occurrence.
func (r *componentRegistry) count(path string, node *schemaNode) {
	if node == nil || node.Type != "object" {
		return
	}
	for _, key := range sortedNames(node.Properties) {
		child := node.Properties[key]
		if child.Type != "object" || len(child.Properties) == 0 {
			continue
		}
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}
		r.observe(childPath, child, false)
		r.count(childPath, child)
	}
}

func (r *componentRegistry) observe(path string, node *schemaNode, force bool) *componentEntry {
	digest := node.Digest()
	if digest == "" {
		return nil
	}
	entry, ok := r.entries[digest]
	if !ok {
		entry = &componentEntry{name: r.uniqueName(componentName(path))}
		r.entries[digest] = entry
	}
	entry.count++
	entry.force = entry.force || force
	return entry
}

// force marks node for publication under name regardless of how often it
// occurs.
func (r *componentRegistry) force(name string, node *schemaNode) *componentEntry {
	return r.observe(name, node, true)
}

// shared returns the entry for a shape that must be referenced, or nil when
// node should be inlined.
func (r *componentRegistry) shared(node *schemaNode) *componentEntry {
	entry, ok := r.entries[node.Digest()]
	if !ok || (!entry.force && entry.count < 2) {
		return nil
	}
	return entry
}

func (e *componentEntry) ref() string {
	return fmt.Sprintf("#/components/schemas/%s", e.name)
}

func (r *componentRegistry) uniqueName(name string) string {
	if _, exists := r.usedNames[name]; !exists {
		r.usedNames[name] = struct{}{}
		return name
	}
	for suffix := 1; ; suffix++ {
		candidate := name + strconv.Itoa(suffix)
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	out := map[string]any{}
	for _, entry := range r.entries {
		if entry.schema != nil {
			out[entry.name] = entry.schema
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
