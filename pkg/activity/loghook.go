package activity

import (
	"context"

	"github.com/rs/zerolog"
)

// LogHook writes each event to logger at debug level, with the option path,
// layer and values from the event metadata as fields.
func LogHook(logger zerolog.Logger) ActivityHook {
	return HookFunc(func(_ context.Context, event Event) error {
		entry := logger.Debug().
			Str("verb", event.Verb).
			Str("object_type", event.ObjectType).
			Str("object_id", event.ObjectID).
			Str("channel", event.Channel)
		for _, key := range []string{"path", "layer_name", "layer_priority", "old_value", "new_value", "explicit"} {
			if value, ok := event.Metadata[key]; ok {
				entry = entry.Interface(key, value)
			}
		}
		entry.Time("occurred_at", event.OccurredAt).Msg("options activity")
		return nil
	})
}
