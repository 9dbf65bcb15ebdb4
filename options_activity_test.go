package optfactory

import (
	"context"
	"testing"

	"github.com/goliatone/go-optfactory/pkg/activity"
)

func TestWithActivityHooksClonesAndFiltersNil(t *testing.T) {
	hook := activity.HookFunc(func(context.Context, activity.Event) error { return nil })

	factory := MustNew(Field("a", 1), WithActivityHooks(activity.Hooks{nil, hook}))
	hooks := factory.ActivityHooks()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}

	hooks[0] = nil
	again := factory.ActivityHooks()
	if len(again) != 1 || again[0] == nil {
		t.Fatalf("expected cloned hooks unaffected by mutation, got %+v", again)
	}

	opts, err := factory.Create(nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	value, err := opts.Get("a")
	if err != nil || value != 1 {
		t.Fatalf("expected Get unaffected, got value=%v err=%v", value, err)
	}
}

func TestActivityHooksDefaultNil(t *testing.T) {
	factory := MustNew(Field("a", 1))
	if hooks := factory.ActivityHooks(); hooks != nil {
		t.Fatalf("expected nil hooks by default, got %+v", hooks)
	}
	var missing *Factory
	if missing.ActivityHooks() != nil {
		t.Fatalf("expected nil factory to report no hooks")
	}
}

func TestActivityHooksSurviveAdd(t *testing.T) {
	hook := &activity.CaptureHook{}
	factory := MustNew(Field("a", 1), WithActivityHooks(activity.Hooks{hook}))

	updated, err := factory.Add(Field("a", 2))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(updated.ActivityHooks()) != 1 {
		t.Fatalf("expected hook to persist through Add")
	}

	opts, err := updated.CreateMutable(nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := opts.Set("a", 3); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(hook.Events) != 2 {
		t.Fatalf("expected created and set events, got %d", len(hook.Events))
	}
	if hook.Events[1].Verb != activity.VerbOptionSet {
		t.Fatalf("expected %s, got %s", activity.VerbOptionSet, hook.Events[1].Verb)
	}
}
