package activity

import "testing"

func TestBuildOptionSetEventCarriesPathAndValues(t *testing.T) {
	event := BuildOptionSetEvent(OptionEventInput{
		ObjectID: " tree-1 ",
		Path:     "solver.tol",
		OldValue: 1e-6,
		NewValue: 1e-8,
		Explicit: true,
	})

	if event.Verb != VerbOptionSet || event.ObjectType != "option" || event.ObjectID != "tree-1" {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if event.Metadata["path"] != "solver.tol" {
		t.Fatalf("expected path metadata, got %v", event.Metadata["path"])
	}
	if event.Metadata["old_value"] != 1e-6 || event.Metadata["new_value"] != 1e-8 {
		t.Fatalf("expected value metadata, got %+v", event.Metadata)
	}
	if event.Metadata["replaced_explicit"] != true {
		t.Fatalf("expected replaced_explicit metadata, got %+v", event.Metadata)
	}
}

func TestBuildOptionUnsetEventFallsBackToPath(t *testing.T) {
	event := BuildOptionUnsetEvent(OptionEventInput{Path: "n"})
	if event.ObjectID != "n" {
		t.Fatalf("expected path used as object id, got %q", event.ObjectID)
	}
	if _, ok := event.Metadata["replaced_explicit"]; ok {
		t.Fatalf("unset events should not carry replaced_explicit")
	}
}

func TestBuildLayerAppliedEventIncludesLayer(t *testing.T) {
	event := BuildLayerAppliedEvent(OptionEventInput{
		ObjectID: "tree-2",
		Layer:    LayerContext{Name: "user", Priority: 300},
		Metadata: map[string]any{"keys": 2},
	})
	if event.Verb != VerbLayerApplied || event.ObjectType != "options.layer" {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if event.Metadata["layer_name"] != "user" || event.Metadata["layer_priority"] != 300 || event.Metadata["keys"] != 2 {
		t.Fatalf("expected layer metadata, got %+v", event.Metadata)
	}
}

func TestBuildOptionsCreatedEventDefaultsObjectID(t *testing.T) {
	event := BuildOptionsCreatedEvent(OptionEventInput{})
	if event.ObjectID != "options" {
		t.Fatalf("expected object type fallback, got %q", event.ObjectID)
	}
}
