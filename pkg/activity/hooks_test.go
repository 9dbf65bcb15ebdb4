package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"path": "solver.tol"}
	evt := Event{
		Verb:       " option.set ",
		ObjectType: " option ",
		ObjectID:   " tree-1 ",
		Channel:    " optfactory ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "option.set" || got.ObjectType != "option" || got.ObjectID != "tree-1" || got.Channel != "optfactory" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["path"] = "changed"
	if evt.Metadata["path"] != "solver.tol" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: "option.set", ObjectType: "option", ObjectID: "1"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), Event{Verb: "option.set", ObjectType: "option", ObjectID: "1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture, nil}, Config{Enabled: true})
	if !enabled.Enabled() {
		t.Fatalf("expected emitter to be enabled")
	}
	if err := enabled.Emit(context.Background(), Event{Verb: "option.set", ObjectType: "option", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannelAndTime(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "option.set",
		ObjectType: "option",
		ObjectID:   "1",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events[0].Channel)
	}
	if !capture.Events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events[0].OccurredAt)
	}
}

func TestCloneHooksDropsNil(t *testing.T) {
	if CloneHooks(Hooks{nil, nil}) != nil {
		t.Fatalf("expected nil when only nil hooks supplied")
	}
	if got := CloneHooks(Hooks{nil, &CaptureHook{}}); len(got) != 1 {
		t.Fatalf("expected one hook, got %d", len(got))
	}
}

func TestFilterPassesListedVerbs(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{Filter(capture, VerbOptionSet, VerbOptionUnset)}

	for _, verb := range []string{VerbOptionsCreated, VerbOptionSet, VerbLayerApplied, VerbOptionUnset} {
		_ = hooks.Notify(context.Background(), Event{Verb: verb, ObjectType: "option", ObjectID: "tree"})
	}
	if diff := cmp.Diff([]string{VerbOptionSet, VerbOptionUnset}, capture.Verbs()); diff != "" {
		t.Fatalf("verbs mismatch (-want +got):\n%s", diff)
	}
	if Filter(nil, VerbOptionSet) != nil {
		t.Fatalf("expected nil hook to stay nil")
	}
}

func TestNormalizeEventDeepCopiesMetadata(t *testing.T) {
	value := map[string]any{"host": "localhost"}
	got := NormalizeEvent(Event{Metadata: map[string]any{"new_value": value}})
	got.Metadata["new_value"].(map[string]any)["host"] = "changed"
	if value["host"] != "localhost" {
		t.Fatalf("expected nested metadata to be copied, got %v", value)
	}
}

func TestLogHookWritesFields(t *testing.T) {
	var buf bytes.Buffer
	hook := LogHook(zerolog.New(&buf).Level(zerolog.DebugLevel))

	event := BuildOptionSetEvent(OptionEventInput{ObjectID: "tree-1", Path: "server.port", NewValue: 9000})
	if err := hook.Notify(context.Background(), NormalizeEvent(event)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["verb"] != VerbOptionSet || line["path"] != "server.port" || line["new_value"] != 9000.0 || line["object_id"] != "tree-1" {
		t.Fatalf("unexpected log line: %v", line)
	}
}
