package mango

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUpdate is returned when an instance-level update is
	// attempted on a document that has never been saved.
	ErrInvalidUpdate = errors.New("mango: cannot update a document that has never been saved")

	// ErrNoID is returned when an operation needs a persisted id and the
	// document does not have one.
	ErrNoID = errors.New("mango: document has no id")

	// ErrMissingFilter is returned by operations that refuse to run
	// without a filter. Pass an explicit empty M{} to affect every
	// document on purpose.
	ErrMissingFilter = errors.New("mango: refusing to run without a filter; pass an explicit empty filter to match everything")

	// ErrNoSession is returned when a schema resolves its collection but
	// neither the schema nor its config carries a session.
	ErrNoSession = errors.New("mango: no session configured")

	// ErrNoDiscriminator is returned when polymorphic registration is
	// attempted on a schema without a discriminator key.
	ErrNoDiscriminator = errors.New("mango: schema has no discriminator key")

	// ErrCursorStarted is returned when query options are changed on a
	// cursor that already began iterating.
	ErrCursorStarted = errors.New("mango: cursor already started iterating")

	// errNoDefault signals internally that a field has no default; the
	// read path treats it as "leave unset".
	errNoDefault = errors.New("mango: field has no default value")
)

// UnknownFieldError reports a key that names no declared field on a schema
// with auto-creation disabled.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("mango: unknown field %q", e.Field)
}

// EmptyRequiredFieldError reports a required field whose storage key is
// absent from the document.
type EmptyRequiredFieldError struct {
	Field string
}

func (e *EmptyRequiredFieldError) Error() string {
	return fmt.Sprintf("mango: %q is required but is empty", e.Field)
}

// FieldTypeError reports a value that failed a field's type check even
// after one coercion pass.
type FieldTypeError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("mango: invalid type %s instead of %s for field %q",
		e.Actual, e.Expected, e.Field)
}

// ConstantFieldError reports an attempt to change a constant field on a
// persisted document.
type ConstantFieldError struct {
	Field string
}

func (e *ConstantFieldError) Error() string {
	return fmt.Sprintf("mango: constant field %q cannot be altered after saving", e.Field)
}

// EnumValueError reports a value outside a field's accepted set. The
// accepted set is deliberately not included in the message: it may come
// from an exhaustible source.
type EnumValueError struct {
	Field string
	Value interface{}
}

func (e *EnumValueError) Error() string {
	return fmt.Sprintf("mango: value %v not in acceptable values for field %q", e.Value, e.Field)
}

// ValidationError reports a validator rejection for a field value.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mango: invalid value for field %q: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
