package optfactory

import "github.com/goliatone/go-optfactory/internal/hydrate"

// Decode copies the snapshot into a value of type T through its JSON form,
// so field names follow json tags.
func Decode[T any](o *Options) (T, error) {
	return hydrate.NewDecoder[T]().Decode(hydrateContext(o), o.ToMap(true))
}

// DecodeStrict is Decode that rejects options without a matching struct
// field.
func DecodeStrict[T any](o *Options) (T, error) {
	return hydrate.NewDecoder(hydrate.WithDisallowUnknownFields[T]()).Decode(hydrateContext(o), o.ToMap(true))
}

// DecodeValid is Decode followed by go-playground/validator checks on the
// struct's `validate` tags. Failures unwrap to validator.ValidationErrors.
func DecodeValid[T any](o *Options) (T, error) {
	return hydrate.NewDecoder(hydrate.WithValidator[T](nil)).Decode(hydrateContext(o), o.ToMap(true))
}

func hydrateContext(o *Options) hydrate.Context {
	return hydrate.Context{Path: o.Path(), SnapshotID: o.ID()}
}
