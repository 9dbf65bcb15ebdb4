package optfactory

import "github.com/goliatone/go-optfactory/pkg/activity"

// WithActivityHooks notifies hooks when options created by the factory are
// created, set or unset. Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *factoryConfig) {
		cfg.activityHooks = normalized
	}
}

// ActivityHooks returns a copy of the hooks configured on the factory.
func (f *Factory) ActivityHooks() activity.Hooks {
	if f == nil {
		return nil
	}
	return activity.CloneHooks(f.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	return activity.CloneHooks(hooks)
}
