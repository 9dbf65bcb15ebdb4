package optfactory

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI represents OpenAPI-compatible JSON Schema documents.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema alongside its format.
// Document must be JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// SchemaGenerator renders a Factory into a schema document. Implementations
// must be safe for concurrent use.
type SchemaGenerator interface {
	Generate(f *Factory) (SchemaDocument, error)
}

// WithSchemaGenerator sets the generator used by Factory.Schema.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *factoryConfig) {
		cfg.schemaGenerator = generator
	}
}

// FieldDescriptor describes one option or section of a Factory.
type FieldDescriptor struct {
	Path    string   `json:"path" yaml:"path"`
	Section bool     `json:"section,omitempty" yaml:"section,omitempty"`
	Doc     string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	Types   []string `json:"types,omitempty" yaml:"types,omitempty"`
	Allowed []any    `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	// Default is the evaluated default, nil when Required.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
	// Expr describes a computed default (rule source, referenced name or
	// expression).
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
	// Required is set when the default cannot be evaluated without explicit
	// values.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	Checks   int  `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// Describe flattens the schema into descriptors in declaration order,
// evaluating each default against an instance without explicit values.
func (f *Factory) Describe() []FieldDescriptor {
	m, err := f.build(newRuntime(f.cfg.clone()), nil, nil, "")
	if err != nil {
		return nil
	}
	var out []FieldDescriptor
	describeInto(&out, m)
	return out
}

func describeInto(out *[]FieldDescriptor, m *MutableOptions) {
	for _, key := range m.schema.keys {
		path := m.qualified(key)
		if section, ok := m.sections[key]; ok {
			*out = append(*out, FieldDescriptor{Path: path, Section: true})
			describeInto(out, section)
			continue
		}
		spec := m.schema.entries[key].spec
		d := FieldDescriptor{
			Path:    path,
			Doc:     spec.doc,
			Allowed: spec.Allowed(),
			Checks:  len(spec.checkAll) + len(spec.checkAny),
		}
		for _, typ := range spec.types {
			d.Types = append(d.Types, typeLabel(typ))
		}
		d.Expr = describeExpr(spec)
		value, err := m.Get(key)
		if err != nil {
			d.Required = true
		} else {
			d.Default = value
		}
		*out = append(*out, d)
	}
}

func describeExpr(spec *ValueSpec) string {
	switch def := spec.def.(type) {
	case Rule:
		return def.String()
	case string:
		if isReference(spec) {
			return def
		}
		return ""
	case nil:
		return ""
	}
	if reflect.TypeOf(spec.def).Kind() == reflect.Func {
		return "<expression>"
	}
	return ""
}

func typeLabel(typ reflect.Type) string {
	if typ == Nil {
		return "nil"
	}
	return typ.String()
}

// Schema renders the factory with the configured generator, or as flattened
// descriptors when none is configured.
func (f *Factory) Schema() (SchemaDocument, error) {
	generator := f.cfg.schemaGenerator
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	return generator.Generate(f)
}

// DefaultSchemaGenerator returns the built-in descriptor-based generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(f *Factory) (SchemaDocument, error) {
	descriptors := []FieldDescriptor{}
	if f != nil {
		descriptors = append(descriptors, f.Describe()...)
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

const requiredMarker = "*Required*"

// HelpTable renders options, their docs and evaluated defaults as a
// reStructuredText grid table sorted by path. Every line starts with prefix.
// Defaults that cannot be evaluated without explicit values show as
// *Required*.
func (f *Factory) HelpTable(prefix string) string {
	var rows [][3]string
	for _, d := range f.Describe() {
		if d.Section {
			continue
		}
		value := requiredMarker
		if !d.Required {
			value = formatValue(d.Default)
		}
		rows = append(rows, [3]string{d.Path, d.Doc, value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	headings := [3]string{"Option", "Description", "Default"}
	widths := [3]int{}
	for i, heading := range headings {
		widths[i] = len(heading)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var b strings.Builder
	rule := func(fill string) {
		b.WriteString(prefix + "+")
		for _, width := range widths {
			b.WriteString(strings.Repeat(fill, width) + "+")
		}
		b.WriteString("\n")
	}
	line := func(cells [3]string) {
		b.WriteString(prefix + "|")
		for i, cell := range cells {
			fmt.Fprintf(&b, "%-*s|", widths[i], cell)
		}
		b.WriteString("\n")
	}
	rule("-")
	line(headings)
	rule("=")
	for _, row := range rows {
		line(row)
		rule("-")
	}
	return b.String()
}
