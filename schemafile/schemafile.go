// Package schemafile declares optfactory schemas in YAML.
//
// A schema file holds an options mapping. Each entry is either a scalar or
// list default, or a mapping that describes the option:
//
//	options:
//	  host: localhost
//	  port:
//	    default: 8080
//	    type: int
//	    checks: ["min=1,max=65535"]
//	  admin_port:
//	    expr: port + 1
//	    type: int
//	  tls:
//	    section:
//	      enabled: false
//
// Entries keep document order.
package schemafile

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/checks"
)

// ErrInvalidSchema reports a malformed schema document.
var ErrInvalidSchema = errors.New("schemafile: invalid schema")

const (
	keyOptions  = "options"
	keySection  = "section"
	keyDefault  = "default"
	keyExpr     = "expr"
	keyCEL      = "cel"
	keyJS       = "js"
	keyStarlark = "starlark"
	keyRef      = "ref"
	keyDoc      = "doc"
	keyType     = "type"
	keyAllowed  = "allowed"
	keyChecks   = "checks"
	keyCheckAny = "check_any"
)

var typeNames = map[string]reflect.Type{
	"int":    optfactory.Int,
	"float":  optfactory.Float,
	"string": optfactory.String,
	"bool":   optfactory.Bool,
	"nil":    optfactory.Nil,
	"null":   optfactory.Nil,
	"list":   optfactory.TypeOf[[]any](),
	"map":    optfactory.TypeOf[map[string]any](),
}

var namedChecks = map[string]optfactory.Predicate{
	"positive":            checks.IsPositive,
	"positive_or_nil":     checks.IsPositiveOrNil,
	"non_negative":        checks.IsNonNegative,
	"non_negative_or_nil": checks.IsNonNegativeOrNil,
	"nil":                 checks.IsNil,
}

// Load reads and parses the schema file at path.
func Load(path string, opts ...optfactory.Option) (*optfactory.Factory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read %s: %w", path, err)
	}
	factory, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return factory, nil
}

// Parse builds a Factory from a YAML schema document. opts configure the
// resulting factory.
func Parse(data []byte, opts ...optfactory.Option) (*optfactory.Factory, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSchema)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, invalid(root, "document must be a mapping")
	}
	var options *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Value != keyOptions {
			return nil, invalid(key, "unknown top-level key %q", key.Value)
		}
		options = value
	}
	if options == nil {
		return nil, fmt.Errorf("%w: missing %q mapping", ErrInvalidSchema, keyOptions)
	}
	defs, err := parseFields(options)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		defs = append(defs, opt)
	}
	return optfactory.New(defs...)
}

func parseFields(node *yaml.Node) ([]optfactory.Definition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, invalid(node, "options must be a mapping")
	}
	defs := make([]optfactory.Definition, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]
		def, err := parseField(name, value)
		if err != nil {
			return nil, err
		}
		defs = append(defs, optfactory.Field(name, def))
	}
	return defs, nil
}

func parseField(name string, node *yaml.Node) (any, error) {
	if node.Kind != yaml.MappingNode {
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, invalid(node, "option %s: %v", name, err)
		}
		return value, nil
	}

	if section := mappingValue(node, keySection); section != nil {
		if len(node.Content) > 2 {
			return nil, invalid(node, "section %s must not carry other keys", name)
		}
		defs, err := parseFields(section)
		if err != nil {
			return nil, err
		}
		factory, err := optfactory.New(defs...)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", name, err)
		}
		return factory, nil
	}

	return parseSpec(name, node)
}

func parseSpec(name string, node *yaml.Node) (*optfactory.ValueSpec, error) {
	var specOpts []optfactory.SpecOption
	var types []reflect.Type
	var def any
	sources := 0

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch key {
		case keyDefault:
			sources++
			if err := value.Decode(&def); err != nil {
				return nil, invalid(value, "option %s: %v", name, err)
			}
		case keyExpr, keyCEL, keyJS, keyStarlark:
			sources++
			if value.Kind != yaml.ScalarNode {
				return nil, invalid(value, "option %s: %s must be a string", name, key)
			}
			def = rule(key, value.Value)
		case keyRef:
			sources++
			if value.Kind != yaml.ScalarNode {
				return nil, invalid(value, "option %s: ref must be a string", name)
			}
			def = reference(value.Value)
		case keyDoc:
			specOpts = append(specOpts, optfactory.WithDoc(value.Value))
		case keyType:
			parsed, err := parseTypes(value)
			if err != nil {
				return nil, err
			}
			types = parsed
		case keyAllowed:
			var allowed []any
			if err := value.Decode(&allowed); err != nil {
				return nil, invalid(value, "option %s: allowed must be a list", name)
			}
			specOpts = append(specOpts, optfactory.WithAllowed(allowed...))
		case keyChecks:
			predicates, err := parseChecks(value)
			if err != nil {
				return nil, err
			}
			specOpts = append(specOpts, optfactory.WithCheckAll(predicates...))
		case keyCheckAny:
			predicates, err := parseChecks(value)
			if err != nil {
				return nil, err
			}
			specOpts = append(specOpts, optfactory.WithCheckAny(predicates...))
		default:
			return nil, invalid(node, "option %s: unknown key %q", name, key)
		}
	}
	if sources > 1 {
		return nil, invalid(node, "option %s: default, ref and rule sources are mutually exclusive", name)
	}
	if len(types) > 0 {
		specOpts = append(specOpts, optfactory.WithType(types...))
	}

	spec, err := optfactory.NewValueSpec(def, specOpts...)
	if err != nil {
		return nil, fmt.Errorf("option %s: %w", name, err)
	}
	return spec, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func rule(engine, source string) optfactory.Rule {
	switch engine {
	case keyCEL:
		return optfactory.CEL(source)
	case keyJS:
		return optfactory.JS(source)
	case keyStarlark:
		return optfactory.Starlark(source)
	default:
		return optfactory.Expr(source)
	}
}

// reference defaults to another option of the same section.
func reference(name string) optfactory.Expression {
	return func(o optfactory.Resolver) (any, error) {
		if !o.Contains(name) {
			return nil, fmt.Errorf("%w: %s", optfactory.ErrUnknownDefaultName, name)
		}
		return o.Get(name)
	}
}

func parseTypes(node *yaml.Node) ([]reflect.Type, error) {
	names, err := stringList(node)
	if err != nil {
		return nil, err
	}
	types := make([]reflect.Type, 0, len(names))
	for _, name := range names {
		typ, ok := typeNames[name]
		if !ok {
			return nil, invalid(node, "unknown type %q", name)
		}
		types = append(types, typ)
	}
	return types, nil
}

// parseChecks accepts named predicates and validator tags.
func parseChecks(node *yaml.Node) ([]optfactory.Predicate, error) {
	tags, err := stringList(node)
	if err != nil {
		return nil, err
	}
	predicates := make([]optfactory.Predicate, 0, len(tags))
	for _, tag := range tags {
		if named, ok := namedChecks[tag]; ok {
			predicates = append(predicates, named)
			continue
		}
		predicates = append(predicates, checks.Tag(tag))
	}
	return predicates, nil
}

func stringList(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return nil, invalid(node, "expected a list of strings")
		}
		return out, nil
	default:
		return nil, invalid(node, "expected a string or a list of strings")
	}
}

func invalid(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidSchema, node.Line, fmt.Sprintf(format, args...))
}
