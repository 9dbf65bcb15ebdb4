package optfactory

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTypeMismatch indicates a value whose runtime type is excluded by the
	// declared types of an option.
	ErrTypeMismatch = errors.New("optfactory: type mismatch")
	// ErrNotAllowed indicates a value outside the allowed set of an option.
	ErrNotAllowed = errors.New("optfactory: value not allowed")
	// ErrCheckFailed indicates a value rejected by a predicate group.
	ErrCheckFailed = errors.New("optfactory: check failed")
	// ErrCircularDefinition indicates default expressions that depend on each
	// other without any of them having a definite value.
	ErrCircularDefinition = errors.New("optfactory: circular definition")
	// ErrUnknownDefaultName indicates a string default that refers to an option
	// name absent from the schema.
	ErrUnknownDefaultName = errors.New("optfactory: unknown default name")
	// ErrUnknownOption indicates access to a name the schema does not declare.
	ErrUnknownOption = errors.New("optfactory: unknown option")
	// ErrDuplicateOption indicates conflicting definitions for the same key.
	ErrDuplicateOption = errors.New("optfactory: duplicate option")
	// ErrIllegalSectionReplace indicates an update that would change the shape
	// of a section.
	ErrIllegalSectionReplace = errors.New("optfactory: illegal section replace")
	// ErrImmutableWrite indicates an attempt to modify an Options snapshot.
	ErrImmutableWrite = errors.New("optfactory: options are immutable")
	// ErrNotSection indicates a section operation on a plain option.
	ErrNotSection = errors.New("optfactory: not a section")
	// ErrInvalidSpec indicates a ValueSpec rejected at construction.
	ErrInvalidSpec = errors.New("optfactory: invalid value spec")
)

// OptionError ties a failure to the option that produced it.
type OptionError struct {
	Op    string
	Name  string
	Value any
	Err   error
}

func (e *OptionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "%q", e.Name)
	if e.Value != nil {
		fmt.Fprintf(&b, " value=%v", e.Value)
	}
	return fmt.Sprintf("%v: %s", e.Err, b.String())
}

func (e *OptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CircularDefinitionError reports the options forming a default cycle, in
// evaluation order starting from the first repeated option.
type CircularDefinitionError struct {
	Chain []string
}

func (e *CircularDefinitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v: at least one of [%s] must have a definite value",
		ErrCircularDefinition, strings.Join(e.Chain, ", "))
}

func (e *CircularDefinitionError) Is(target error) bool {
	return target == ErrCircularDefinition
}

func optionError(op, name string, value any, err error) error {
	return &OptionError{Op: op, Name: name, Value: value, Err: err}
}

func unknownOption(op, name string) error {
	return &OptionError{Op: op, Name: name, Err: ErrUnknownOption}
}
