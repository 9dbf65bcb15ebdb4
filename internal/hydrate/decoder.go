package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// Context identifies the options snapshot being decoded.
type Context struct {
	Path       string
	SnapshotID string
}

func (c Context) label() string {
	if c.Path == "" {
		return "<root>"
	}
	return c.Path
}

// PostHook adjusts or checks the hydrated value after decoding.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts option mappings into typed values through their JSON
// form, so struct fields follow json tags.
type Decoder[T any] struct {
	strict    bool
	validate  *validator.Validate
	postHooks []PostHook[T]
}

// WithDisallowUnknownFields rejects mapping keys without a matching field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithValidator checks `validate` struct tags after decoding. A nil v uses a
// shared default instance.
func WithValidator[T any](v *validator.Validate) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if v == nil {
			v = defaultValidator()
		}
		d.validate = v
	}
}

// WithPostHook runs hook after decoding and validation.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.postHooks = append(d.postHooks, hook)
		}
	}
}

// NewDecoder constructs a Decoder with the supplied options.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. payload is not modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %s", ctx.label())
	}

	buffer, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal payload for %s: %w", ctx.label(), err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
	}

	if target, ok := structTarget(&result); d.validate != nil && ok {
		if err := d.validate.Struct(target); err != nil {
			return zero, fmt.Errorf("hydrate: validate %s: %w", ctx.label(), err)
		}
	}

	for _, hook := range d.postHooks {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", ctx.label(), err)
		}
	}
	return result, nil
}

// structTarget returns the pointer validator expects, unwrapping T when it is
// itself a pointer to a struct.
func structTarget(ptr any) (any, bool) {
	rv := reflect.ValueOf(ptr)
	for rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Pointer {
		if rv.Elem().IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	return rv.Interface(), rv.Elem().Kind() == reflect.Struct
}
