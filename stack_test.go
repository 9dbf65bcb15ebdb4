package optfactory

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-optfactory/pkg/activity"
)

func TestNewStackValidatesLayers(t *testing.T) {
	cases := []struct {
		name   string
		layers []Layer
		want   error
	}{
		{"missing name", []Layer{NewLayer(" ", 1, nil)}, ErrLayerNameRequired},
		{"duplicate name", []Layer{NewLayer("a", 1, nil), NewLayer("a", 2, nil)}, ErrDuplicateLayerName},
		{"shared priority", []Layer{NewLayer("a", 1, nil), NewLayer("b", 1, nil)}, ErrPriorityOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewStack(tc.layers...); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	empty, err := NewStack()
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	if _, err := empty.Merge(); !errors.Is(err, ErrEmptyStack) {
		t.Fatalf("expected ErrEmptyStack, got %v", err)
	}
}

func TestStackMergeAndTrace(t *testing.T) {
	system := map[string]any{"base_port": 80, "server": map[string]any{"host": "system", "tls": map[string]any{"enabled": false}}}
	user := map[string]any{"server": map[string]any{"host": "user"}}
	cli := map[string]any{"server": map[string]any{"tls": map[string]any{"enabled": true}}}

	stack, err := SystemProjectUserCLI(system, nil, user, cli)
	if err != nil {
		t.Fatalf("SystemProjectUserCLI: %v", err)
	}
	system["base_port"] = 1

	names := make([]string, 0, stack.Len())
	for _, layer := range stack.Layers() {
		names = append(names, layer.Name)
	}
	if diff := cmp.Diff([]string{"cli", "user", "project", "system"}, names); diff != "" {
		t.Fatalf("layer order mismatch (-want +got):\n%s", diff)
	}

	merged, err := stack.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if diff := cmp.Diff(map[string]any{
		"base_port": 80,
		"server":    map[string]any{"host": "user", "tls": map[string]any{"enabled": true}},
	}, merged); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}

	trace := stack.Trace("server.host")
	if trace.Source != "user" || trace.Value != "user" {
		t.Fatalf("unexpected trace winner: %+v", trace)
	}
	want := []Provenance{
		{Layer: "cli", Priority: PriorityCLI},
		{Layer: "user", Priority: PriorityUser, Value: "user", Found: true},
		{Layer: "project", Priority: PriorityProject},
		{Layer: "system", Priority: PrioritySystem, Value: "system", Found: true},
	}
	if diff := cmp.Diff(want, trace.Layers); diff != "" {
		t.Fatalf("provenance mismatch (-want +got):\n%s", diff)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("TraceFromJSON: %v", err)
	}
	if decoded.Source != "user" || len(decoded.Layers) != 4 || !decoded.Layers[3].Found {
		t.Fatalf("unexpected decoded trace: %+v", decoded)
	}
}

func TestCreateFromStack(t *testing.T) {
	hook := &activity.CaptureHook{}
	factory, err := serverFactory(t).Add(WithActivityHooks(activity.Hooks{hook}))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	stack, err := NewStack(
		NewLayer("defaults", 10, map[string]any{"base_port": 8000}, WithLayerSource("/etc/app.yaml")),
		NewLayer("flags", 20, map[string]any{"server": map[string]any{"host": "cli"}, "unknown": 1}),
	)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}

	opts, err := factory.CreateFromStack(stack)
	if err != nil {
		t.Fatalf("CreateFromStack: %v", err)
	}
	assertValues(t, opts, map[string]any{"base_port": 8000, "server.host": "cli", "url": 8363})

	if diff := cmp.Diff([]string{
		activity.VerbOptionsCreated,
		activity.VerbLayerApplied,
		activity.VerbLayerApplied,
	}, hook.Verbs()); diff != "" {
		t.Fatalf("verbs mismatch (-want +got):\n%s", diff)
	}
	applied := hook.Events[1]
	if applied.Metadata["layer_name"] != "flags" || applied.Metadata["layer_priority"] != 20 {
		t.Fatalf("expected strongest layer first, got %+v", applied.Metadata)
	}
	if hook.Events[2].Metadata["source"] != "/etc/app.yaml" {
		t.Fatalf("expected layer source in metadata, got %+v", hook.Events[2].Metadata)
	}
	if applied.Channel != activity.DefaultChannel || applied.ObjectID != hook.Events[0].ObjectID {
		t.Fatalf("expected events to share the tree id and default channel: %+v", applied)
	}

	invalid, err := NewStack(NewLayer("bad", 1, map[string]any{"server": "flat"}))
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	if _, err := factory.CreateFromStack(invalid); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for a flat section value, got %v", err)
	}
}

func TestActivityEventsForMutations(t *testing.T) {
	hook := &activity.CaptureHook{Err: errors.New("sink unavailable")}
	factory := MustNew(
		Field("a", 1),
		Field("s", MustNew(Field("x", 1))),
		WithActivityHooks(activity.Hooks{hook, nil}),
	)
	if got := len(factory.ActivityHooks()); got != 1 {
		t.Fatalf("expected nil hooks to be dropped, got %d", got)
	}

	opts, err := factory.CreateMutable(map[string]any{"a": 2, "s": map[string]any{"x": 3}})
	if err != nil {
		t.Fatalf("CreateMutable: %v", err)
	}
	if err := opts.Set("s.x", 4); err != nil {
		t.Fatalf("Set must not fail when a hook fails: %v", err)
	}
	if err := opts.Set("s.x", 5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := opts.Unset("s.x"); err != nil {
		t.Fatalf("Unset: %v", err)
	}
	if err := opts.Unset("s.x"); err != nil {
		t.Fatalf("Unset: %v", err)
	}

	if diff := cmp.Diff([]string{
		activity.VerbOptionsCreated,
		activity.VerbOptionSet,
		activity.VerbOptionSet,
		activity.VerbOptionUnset,
	}, hook.Verbs()); diff != "" {
		t.Fatalf("verbs mismatch (-want +got):\n%s", diff)
	}

	if got := hook.Events[0].Metadata["explicit"]; got != 2 {
		t.Fatalf("expected created event to count explicit values, got %v", got)
	}
	set := hook.Events[2].Metadata
	if set["path"] != "s.x" || set["old_value"] != 4 || set["new_value"] != 5 || set["replaced_explicit"] != true {
		t.Fatalf("unexpected set metadata: %+v", set)
	}
	unset := hook.Events[3].Metadata
	if unset["path"] != "s.x" || unset["old_value"] != 5 {
		t.Fatalf("unexpected unset metadata: %+v", unset)
	}
}
