package openapi

import (
	"github.com/goliatone/go-optfactory"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI schema generator for factories.
func NewGenerator(opts ...GeneratorOption) optfactory.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option returns an optfactory.Option that makes Factory.Schema render
// OpenAPI documents.
func Option(opts ...GeneratorOption) optfactory.Option {
	return optfactory.WithSchemaGenerator(NewGenerator(opts...))
}

// Generate implements optfactory.SchemaGenerator. The document describes a
// single operation whose request body is the options object.
func (g generator) Generate(f *optfactory.Factory) (optfactory.SchemaDocument, error) {
	root, err := buildSchemaGraph(f)
	if err != nil {
		return optfactory.SchemaDocument{}, err
	}
	document, err := newOpenAPIDocumentBuilder(g.config, newComponentRegistry(), root).build()
	if err != nil {
		return optfactory.SchemaDocument{}, err
	}
	return optfactory.SchemaDocument{
		Format:   optfactory.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
