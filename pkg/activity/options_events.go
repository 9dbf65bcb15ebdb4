package activity

import (
	"strings"
	"time"
)

// Verbs emitted for options trees.
const (
	VerbOptionsCreated = "options.created"
	VerbOptionSet      = "option.set"
	VerbOptionUnset    = "option.unset"
	VerbLayerApplied   = "options.layer.applied"
)

// LayerContext describes the configuration layer an event originated from.
type LayerContext struct {
	Name     string
	Priority int
}

// OptionEventInput describes the common fields of options events.
type OptionEventInput struct {
	// ObjectID identifies the options tree.
	ObjectID   string
	Path       string
	OldValue   any
	NewValue   any
	Explicit   bool
	Layer      LayerContext
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildOptionsCreatedEvent reports a freshly created options tree.
func BuildOptionsCreatedEvent(input OptionEventInput) Event {
	return buildEvent(VerbOptionsCreated, "options", input)
}

// BuildOptionSetEvent reports an explicit value assigned to an option.
// Explicit records whether the option already had an explicit value.
func BuildOptionSetEvent(input OptionEventInput) Event {
	return buildEvent(VerbOptionSet, "option", input)
}

// BuildOptionUnsetEvent reports an explicit value removed from an option.
func BuildOptionUnsetEvent(input OptionEventInput) Event {
	return buildEvent(VerbOptionUnset, "option", input)
}

// BuildLayerAppliedEvent reports a layer merged into a create call.
func BuildLayerAppliedEvent(input OptionEventInput) Event {
	return buildEvent(VerbLayerApplied, "options.layer", input)
}

func buildEvent(verb, objectType string, input OptionEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Path != "" {
		metadata = ensureMetadata(metadata)
		metadata["path"] = input.Path
	}
	if input.Layer.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["layer_name"] = input.Layer.Name
		metadata["layer_priority"] = input.Layer.Priority
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}
	if verb == VerbOptionSet {
		metadata = ensureMetadata(metadata)
		metadata["replaced_explicit"] = input.Explicit
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
