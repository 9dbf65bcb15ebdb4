package openapi

import (
	"fmt"
	"sort"
	"strings"
)

type openAPIDocumentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	rootNode *schemaNode
	rootRef  string
	rootBody map[string]any
}

func newOpenAPIDocumentBuilder(config generatorConfig, registry *componentRegistry, root *schemaNode) *openAPIDocumentBuilder {
	return &openAPIDocumentBuilder{
		config:   config,
		registry: registry,
		rootNode: root,
	}
}

func (b *openAPIDocumentBuilder) build() (map[string]any, error) {
	if b.rootNode == nil {
		return nil, fmt.Errorf("openapi: root schema node cannot be nil")
	}

	b.registry.count("", b.rootNode)
	if b.config.rootComponent != "" {
		entry := b.registry.force(b.config.rootComponent, b.rootNode)
		b.rootRef = entry.ref()
		entry.schema = b.body(b.rootNode)
	} else {
		b.rootBody = b.body(b.rootNode)
	}

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(),
	}

	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{
			"schemas": components,
		}
	}

	if err := validateDocument(document); err != nil {
		return nil, err
	}

	return document, nil
}

func (b *openAPIDocumentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *openAPIDocumentBuilder) buildPaths() map[string]any {
	paths := map[string]any{}
	for _, operation := range b.config.operations {
		item, _ := paths[operation.Path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[operation.Path] = item
		}
		item[operation.Method] = b.buildOperation(operation)
	}
	return paths
}

func (b *openAPIDocumentBuilder) buildOperation(op operationConfig) map[string]any {
	statuses := make([]string, 0, len(op.responses))
	for status := range op.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	responses := make(map[string]any, len(statuses))
	for _, status := range statuses {
		response := map[string]any{"description": op.responses[status].Description}
		if op.body == bodyResponse && strings.HasPrefix(status, "2") {
			response["content"] = b.content(b.rootSchema())
		}
		responses[status] = response
	}

	operation := map[string]any{
		"operationId": op.id(),
		"responses":   responses,
	}
	if summary := strings.TrimSpace(op.Summary); summary != "" {
		operation["summary"] = summary
	}
	if op.body == bodyRequest {
		schema := b.rootSchema()
		if op.partial {
			schema = b.partialSchema()
		}
		operation["requestBody"] = map[string]any{
			"required": true,
			"content":  b.content(schema),
		}
	}
	return operation
}

func (b *openAPIDocumentBuilder) content(schema map[string]any) map[string]any {
	return map[string]any{
		b.config.contentType: map[string]any{"schema": schema},
	}
}

func (b *openAPIDocumentBuilder) rootSchema() map[string]any {
	if b.rootRef != "" {
		return map[string]any{"$ref": b.rootRef}
	}
	return b.rootBody
}

// partialSchema is the root body without its required list, for merge
// operations that send only the options they change.
func (b *openAPIDocumentBuilder) partialSchema() map[string]any {
	body := b.body(b.rootNode)
	delete(body, "required")
	return body
}

// schemaFor returns a $ref for shared sections and the inline body otherwise.
func (b *openAPIDocumentBuilder) schemaFor(node *schemaNode) map[string]any {
	if node.Type == "object" && len(node.Properties) > 0 {
		if entry := b.registry.shared(node); entry != nil {
			if entry.schema == nil {
				entry.schema = b.body(node)
			}
			return map[string]any{"$ref": entry.ref()}
		}
	}
	return b.body(node)
}

func (b *openAPIDocumentBuilder) body(node *schemaNode) map[string]any {
	result := node.baseMap()

	if len(node.Properties) > 0 || node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedNames(node.Properties) {
			props[key] = b.schemaFor(node.Properties[key])
		}
		result["properties"] = props
	}

	if len(node.Required) > 0 {
		required := append([]string{}, node.Required...)
		sort.Strings(required)
		result["required"] = required
	}

	if node.Items != nil {
		result["items"] = b.schemaFor(node.Items)
	}

	return result
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	openapi, _ := document["openapi"].(string)
	if openapi == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for pathKey, pathValue := range paths {
		pathItem, _ := pathValue.(map[string]any)
		if pathItem == nil {
			return fmt.Errorf("openapi: path %q invalid payload", pathKey)
		}
		if len(pathItem) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if _, ok := operation["operationId"].(string); !ok {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			if requestBody, ok := operation["requestBody"].(map[string]any); ok {
				content, _ := requestBody["content"].(map[string]any)
				if len(content) == 0 {
					return fmt.Errorf("openapi: operation %s %s requestBody missing content", method, pathKey)
				}
			}
			if _, ok := operation["responses"].(map[string]any); !ok {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
