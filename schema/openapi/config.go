package openapi

import (
	"strings"
)

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	contentType    string
	operations     []operationConfig
	rootComponent  string
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

// bodyRole says where the options object appears in an operation.
type bodyRole int

const (
	bodyNone bodyRole = iota
	bodyRequest
	bodyResponse
)

type operationConfig struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
	body        bodyRole
	// partial request bodies may leave out required options.
	partial   bool
	responses map[string]responseConfig
}

func (o operationConfig) id() string {
	if o.OperationID != "" {
		return o.OperationID
	}
	return o.Method + ":" + o.Path
}

func (o operationConfig) writes() bool {
	return o.body == bodyRequest || o.Method == "delete"
}

type responseConfig struct {
	Description string
}

const optionsPath = "/options"

func writeOperation(method, id, summary string, partial bool) operationConfig {
	return operationConfig{
		Path:        optionsPath,
		Method:      method,
		OperationID: id,
		Summary:     summary,
		body:        bodyRequest,
		partial:     partial,
		responses: map[string]responseConfig{
			"204": {Description: "Options applied"},
			"400": {Description: "Malformed body"},
			"422": {Description: "Options rejected by validation"},
		},
	}
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info: openapiInfo{
			Title:   "Options Schema",
			Version: "1.0.0",
		},
		contentType: "application/json",
		operations: []operationConfig{
			{
				Path:        optionsPath,
				Method:      "get",
				OperationID: "getOptions",
				Summary:     "Resolved options",
				body:        bodyResponse,
				responses:   map[string]responseConfig{"200": {Description: "Current snapshot"}},
			},
			writeOperation("put", "replaceOptions", "Replace the runtime override layer", false),
			writeOperation("patch", "mergeOptions", "Merge into the runtime override layer", true),
			{
				Path:        optionsPath,
				Method:      "delete",
				OperationID: "clearOptions",
				Summary:     "Clear the runtime override layer",
				responses:   map[string]responseConfig{"204": {Description: "Overrides cleared"}},
			},
		},
	}
}

// GeneratorOption configures the document wrapped around the options schema.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// InfoOption configures optional fields on the OpenAPI info section.
type InfoOption func(*openapiInfo)

// WithInfoDescription sets the optional description field for the info section.
func WithInfoDescription(description string) InfoOption {
	return func(info *openapiInfo) {
		info.Description = description
	}
}

// WithInfo configures the OpenAPI info block. Title and version are required
// in every document, so empty strings retain the existing values.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.info)
			}
		}
	}
}

// OperationOption configures optional operation metadata.
type OperationOption func(*operationConfig)

// WithOperationSummary attaches a summary to the configured operation.
func WithOperationSummary(summary string) OperationOption {
	return func(operation *operationConfig) {
		operation.Summary = summary
	}
}

// WithOperation adds an operation taking the options object as its request
// body, or updates the operation already declared for method and path.
// Empty id keeps the existing one.
func WithOperation(path, method, operationID string, opts ...OperationOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		method = strings.ToLower(method)
		if path == "" || method == "" {
			return
		}
		i := cfg.find(path, method)
		if i < 0 {
			cfg.operations = append(cfg.operations, writeOperation(method, "", "", false))
			i = len(cfg.operations) - 1
			cfg.operations[i].Path = path
		}
		operation := &cfg.operations[i]
		if operationID != "" {
			operation.OperationID = operationID
		}
		for _, opt := range opts {
			if opt != nil {
				opt(operation)
			}
		}
	}
}

// WithReadOnly keeps only operations that do not change the overrides.
func WithReadOnly() GeneratorOption {
	return func(cfg *generatorConfig) {
		kept := cfg.operations[:0]
		for _, operation := range cfg.operations {
			if !operation.writes() {
				kept = append(kept, operation)
			}
		}
		cfg.operations = kept
	}
}

// WithContentType sets the media type used for option bodies.
func WithContentType(contentType string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if contentType != "" {
			cfg.contentType = contentType
		}
	}
}

// ResponseOption configures additional response metadata.
type ResponseOption func(*responseConfig)

// WithResponse registers or overrides a response on every operation that
// takes the options object as its request body.
func WithResponse(status, description string, opts ...ResponseOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status == "" {
			return
		}
		for i := range cfg.operations {
			operation := &cfg.operations[i]
			if operation.body != bodyRequest {
				continue
			}
			responses := make(map[string]responseConfig, len(operation.responses)+1)
			for key, value := range operation.responses {
				responses[key] = value
			}
			resp := responses[status]
			if description != "" {
				resp.Description = description
			}
			for _, opt := range opts {
				if opt != nil {
					opt(&resp)
				}
			}
			responses[status] = resp
			operation.responses = responses
		}
	}
}

// WithRootComponent publishes the root options object under
// #/components/schemas/<name> and references it from every operation.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootComponent = name
	}
}

func (cfg *generatorConfig) find(path, method string) int {
	for i, operation := range cfg.operations {
		if operation.Path == path && operation.Method == method {
			return i
		}
	}
	return -1
}
