package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-optfactory"
)

// Extension keys carried on option schemas.
const (
	extensionExpr   = "x-optfactory-expr"
	extensionChecks = "x-optfactory-checks"
)

type schemaNode struct {
	Type        string
	Format      string
	Description string
	Nullable    bool
	Properties  map[string]*schemaNode
	Required    []string
	Items       *schemaNode
	Enum        []any
	Default     any
	OneOf       []*schemaNode
	extensions  map[string]any
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Description != "" {
		result["description"] = n.Description
	}
	if n.Nullable {
		result["nullable"] = true
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if len(n.OneOf) > 0 {
		variants := make([]any, len(n.OneOf))
		for i, variant := range n.OneOf {
			variants[i] = variant.inlineOpenAPI()
		}
		result["oneOf"] = variants
	}
	for key, value := range n.extensions {
		result[key] = value
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()

	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedNames(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}

	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}

	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}

	return result
}

func (n *schemaNode) setExtension(key string, value any) {
	if n.extensions == nil {
		n.extensions = map[string]any{}
	}
	n.extensions[key] = value
}

// Digest identifies structurally equal schemas so repeated sections can be
// published once under components.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortedNames(props map[string]*schemaNode) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildSchemaGraph turns a factory into an object schema. Sections become
// nested objects; options whose default cannot be computed without explicit
// values are listed as required.
func buildSchemaGraph(f *optfactory.Factory) (*schemaNode, error) {
	if f == nil {
		return newObjectNode(), nil
	}
	descriptors := map[string]optfactory.FieldDescriptor{}
	for _, d := range f.Describe() {
		descriptors[d.Path] = d
	}
	return buildSection(f, "", descriptors)
}

func buildSection(f *optfactory.Factory, prefix string, descriptors map[string]optfactory.FieldDescriptor) (*schemaNode, error) {
	node := newObjectNode()
	for _, key := range f.Keys() {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if section, ok := f.Section(key); ok {
			child, err := buildSection(section, path, descriptors)
			if err != nil {
				return nil, err
			}
			node.Properties[key] = child
			continue
		}
		spec, _ := f.Spec(key)
		child, err := buildOption(spec, descriptors[path])
		if err != nil {
			return nil, fmt.Errorf("openapi: option %s: %w", path, err)
		}
		node.Properties[key] = child
		if descriptors[path].Required {
			node.Required = append(node.Required, key)
		}
	}
	return node, nil
}

func buildOption(spec *optfactory.ValueSpec, d optfactory.FieldDescriptor) (*schemaNode, error) {
	var node *schemaNode
	switch types := spec.Types(); {
	case len(types) > 0:
		node = schemaForTypes(types)
	case d.Default != nil:
		built, err := schemaForValue(reflect.ValueOf(d.Default))
		if err != nil {
			return nil, err
		}
		node = built
	default:
		node = &schemaNode{}
	}
	node.Description = d.Doc
	if !d.Required && d.Default != nil && d.Expr == "" {
		node.Default = d.Default
	}
	if len(d.Allowed) > 0 {
		node.Enum = d.Allowed
	}
	if d.Expr != "" {
		node.setExtension(extensionExpr, d.Expr)
	}
	if d.Checks > 0 {
		node.setExtension(extensionChecks, d.Checks)
	}
	return node, nil
}

// schemaForTypes maps declared Go types onto a schema. Int next to Float
// collapses to number; other mixes become oneOf.
func schemaForTypes(types []reflect.Type) *schemaNode {
	nullable := false
	var variants []*schemaNode
	seen := map[string]bool{}
	for _, typ := range types {
		if typ == optfactory.Nil {
			nullable = true
			continue
		}
		variant := schemaForType(typ)
		key := variant.Type + "/" + variant.Format
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, variant)
	}
	if seen["integer/"] && seen["number/"] {
		filtered := variants[:0]
		for _, variant := range variants {
			if variant.Type != "integer" || variant.Format != "" {
				filtered = append(filtered, variant)
			}
		}
		variants = filtered
	}

	var node *schemaNode
	switch len(variants) {
	case 0:
		node = &schemaNode{}
	case 1:
		node = variants[0]
	default:
		node = &schemaNode{OneOf: variants}
	}
	node.Nullable = nullable
	return node
}

func schemaForType(rt reflect.Type) *schemaNode {
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == reflect.TypeOf(time.Time{}) {
		return &schemaNode{Type: "string", Format: "date-time"}
	}
	if rt == reflect.TypeOf(time.Duration(0)) {
		return &schemaNode{Type: "integer", Format: "duration"}
	}
	switch rt.Kind() {
	case reflect.Bool:
		return &schemaNode{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &schemaNode{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &schemaNode{Type: "number"}
	case reflect.String:
		return &schemaNode{Type: "string"}
	case reflect.Map, reflect.Struct, reflect.Interface:
		return &schemaNode{Type: "object"}
	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
			return &schemaNode{Type: "string", Format: "byte"}
		}
		item := schemaForType(rt.Elem())
		return &schemaNode{Type: "array", Items: item}
	default:
		return &schemaNode{Type: "string", Format: "go:" + rt.String()}
	}
}

// schemaForValue infers a schema from a default when no types are declared.
func schemaForValue(rv reflect.Value) (*schemaNode, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return &schemaNode{Nullable: true}, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s unsupported", rv.Type().Key())
		}
		node := newObjectNode()
		iter := rv.MapRange()
		for iter.Next() {
			child, err := schemaForValue(iter.Value())
			if err != nil {
				return nil, err
			}
			if value, ok := scalarDefault(iter.Value()); ok {
				child.Default = value
			}
			node.Properties[iter.Key().String()] = child
		}
		return node, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return &schemaNode{Type: "string", Format: "byte"}, nil
		}
		node := &schemaNode{Type: "array", Items: schemaForType(rv.Type().Elem())}
		if rv.Len() > 0 {
			item, err := schemaForValue(rv.Index(0))
			if err != nil {
				return nil, err
			}
			node.Items = item
		}
		return node, nil
	default:
		return schemaForType(rv.Type()), nil
	}
}

// scalarDefault unwraps a map entry that can be published as a default.
func scalarDefault(rv reflect.Value) (any, bool) {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Interface(), true
	}
	return nil, false
}

// componentName turns a section path such as "server.tls" into ServerTls.
func componentName(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	name := b.String()
	if name == "" {
		return "Options"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
