// Package checks holds predicates for use with optfactory.WithCheckAll and
// optfactory.WithCheckAny.
package checks

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/internal/numeric"
)

// IsPositive accepts numbers greater than zero.
func IsPositive(value any) bool {
	f, ok := numeric.ToFloat64(value)
	return ok && f > 0
}

// IsPositiveOrNil accepts nil or numbers greater than zero.
func IsPositiveOrNil(value any) bool {
	return value == nil || IsPositive(value)
}

// IsNonNegative accepts numbers greater than or equal to zero.
func IsNonNegative(value any) bool {
	f, ok := numeric.ToFloat64(value)
	return ok && f >= 0
}

// IsNonNegativeOrNil accepts nil or numbers greater than or equal to zero.
func IsNonNegativeOrNil(value any) bool {
	return value == nil || IsNonNegative(value)
}

// IsNil accepts only nil.
func IsNil(value any) bool {
	return value == nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func sharedValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Tag returns a predicate backed by a go-playground/validator tag, such as
// "min=1,max=10" or "oneof=json yaml". An unknown tag panics on first use,
// as validator itself does.
func Tag(tag string) optfactory.Predicate {
	v := sharedValidator()
	return func(value any) bool {
		return v.Var(value, tag) == nil
	}
}

// Tags is Tag for several tags that must all pass.
func Tags(tags ...string) []optfactory.Predicate {
	out := make([]optfactory.Predicate, len(tags))
	for i, tag := range tags {
		out[i] = Tag(tag)
	}
	return out
}
