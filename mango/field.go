package mango

import (
	"errors"
	"reflect"
	"sync/atomic"
)

// valueState is the tri-state a field sees when it inspects a document:
// the storage key can be absent, present with an explicit nil, or present
// with a value. Defaults apply only to the absent case.
type valueState int

const (
	stateUnset valueState = iota
	stateNull
	stateSet
)

// GetCallback transforms a stored value into its application-facing form
// when the field is read.
type GetCallback func(m *Model, stored interface{}) (interface{}, error)

// SetCallback transforms (or rejects) an incoming value before it is
// written into the document under the field's storage key.
type SetCallback func(m *Model, value interface{}) (interface{}, error)

// CoerceCallback gets one chance to convert a value that failed the
// field's type check before the check is retried.
type CoerceCallback func(value interface{}) interface{}

// Validator checks a value after type checking and before the set
// callback. Returning an error rejects the write.
type Validator func(value interface{}) error

var fieldSerial uint64

// Field is a declarative specification for one document property: its
// attribute name, storage key, type constraint, default, and the callback
// hooks that run on reads and writes. A Field is created once and never
// changes identity; schemas keep fields in an ordered, name-keyed registry.
type Field struct {
	id       uint64
	name     string
	storage  string // explicit storage key, "" means use name
	typ      reflect.Type
	required bool

	hasDefault bool
	defValue   interface{}
	defFunc    func() interface{}

	getCB      GetCallback
	setCB      SetCallback
	coerceCB   CoerceCallback
	validators []Validator
}

// FieldOption configures a Field at construction time.
type FieldOption func(*Field)

// NewField creates a field specification with a fresh process-unique
// identity. With no options the field is untyped, optional, and has no
// default, which is exactly what auto-created ad hoc fields use.
func NewField(name string, opts ...FieldOption) *Field {
	f := &Field{
		id:   atomic.AddUint64(&fieldSerial, 1),
		name: name,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Typed constrains the field's values to type T. Writes of other types
// fail with FieldTypeError after one coercion attempt.
func Typed[T any]() FieldOption {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return func(f *Field) { f.typ = t }
}

// Required marks the field as mandatory: reading it while unset, or saving
// the document while it is unset, fails with EmptyRequiredFieldError.
func Required() FieldOption {
	return func(f *Field) { f.required = true }
}

// Default supplies a static default value, applied when the field is unset.
func Default(v interface{}) FieldOption {
	return func(f *Field) {
		f.hasDefault = true
		f.defValue = v
		f.defFunc = nil
	}
}

// DefaultFunc supplies a producer invoked freshly for every default
// resolution, so sibling documents never share a mutable default.
func DefaultFunc(fn func() interface{}) FieldOption {
	return func(f *Field) {
		f.hasDefault = true
		f.defFunc = fn
		f.defValue = nil
	}
}

// StorageKey overrides the key the value is stored under in the document.
// Without it the field's name is the storage key.
func StorageKey(key string) FieldOption {
	return func(f *Field) { f.storage = key }
}

// WithGetCallback installs a custom read transformation, replacing the
// field kind's default one.
func WithGetCallback(cb GetCallback) FieldOption {
	return func(f *Field) { f.getCB = cb }
}

// WithSetCallback installs a custom write transformation, replacing the
// field kind's default one.
func WithSetCallback(cb SetCallback) FieldOption {
	return func(f *Field) { f.setCB = cb }
}

// WithCoerceCallback installs the conversion attempted when a value fails
// the type check.
func WithCoerceCallback(cb CoerceCallback) FieldOption {
	return func(f *Field) { f.coerceCB = cb }
}

// Validate attaches validators run on every non-nil write.
func Validate(vs ...Validator) FieldOption {
	return func(f *Field) { f.validators = append(f.validators, vs...) }
}

// ID returns the field's process-unique identity. It is stable for the
// field's lifetime.
func (f *Field) ID() uint64 { return f.id }

// Name returns the attribute name the field was declared under.
func (f *Field) Name() string { return f.name }

// StorageKey returns the key the field reads and writes in the document.
func (f *Field) StorageKey() string {
	if f.storage != "" {
		return f.storage
	}
	return f.name
}

// IsRequired reports whether the field must be set before saving.
func (f *Field) IsRequired() bool { return f.required }

// state inspects the document without triggering defaults or callbacks.
func (f *Field) state(m *Model) valueState {
	v, ok := m.doc[f.StorageKey()]
	if !ok {
		return stateUnset
	}
	if v == nil {
		return stateNull
	}
	return stateSet
}

// defaultValue resolves the configured default. Producers are invoked
// fresh on every call. errNoDefault means "leave the field unset".
func (f *Field) defaultValue() (interface{}, error) {
	if !f.hasDefault {
		return nil, errNoDefault
	}
	if f.defFunc != nil {
		return f.defFunc(), nil
	}
	return f.defValue, nil
}

// setDefault populates the field's default on m, doing nothing when the
// field already holds a value (even an explicit nil) or has no default.
// The default goes through the full write path so it is validated like any
// other value.
func (f *Field) setDefault(m *Model) error {
	if f.state(m) != stateUnset {
		return nil
	}
	v, err := f.defaultValue()
	if errors.Is(err, errNoDefault) {
		return nil
	}
	if err != nil {
		return err
	}
	return f.write(m, v)
}

// read resolves the field's value on m: required-but-unset fails, an unset
// optional field first receives its default, and the stored value passes
// through the get callback.
func (f *Field) read(m *Model) (interface{}, error) {
	if f.state(m) == stateUnset {
		if f.required {
			return nil, &EmptyRequiredFieldError{Field: f.name}
		}
		if err := f.setDefault(m); err != nil {
			return nil, err
		}
	}
	return f.get(m, m.doc[f.StorageKey()])
}

// lookup reports the field's value and whether it is present, without
// populating defaults. Explicit nil counts as present.
func (f *Field) lookup(m *Model) (interface{}, bool, error) {
	if f.state(m) == stateUnset {
		return nil, false, nil
	}
	v, err := f.get(m, m.doc[f.StorageKey()])
	return v, true, err
}

// write checks the value against the declared type (retrying once through
// the coerce callback), runs validators, applies the set callback, and
// stores the result under the field's storage key.
func (f *Field) write(m *Model, value interface{}) error {
	if err := f.checkType(value); err != nil {
		value = f.coerce(value)
		if err := f.checkType(value); err != nil {
			return err
		}
	}
	if value != nil {
		for _, v := range f.validators {
			if err := v(value); err != nil {
				return &ValidationError{Field: f.name, Err: err}
			}
		}
	}
	out, err := f.set(m, value)
	if err != nil {
		return err
	}
	m.setStored(f.StorageKey(), out)
	return nil
}

func (f *Field) checkType(value interface{}) error {
	if value == nil || f.typ == nil {
		return nil
	}
	vt := reflect.TypeOf(value)
	if f.typ.Kind() == reflect.Interface {
		if vt.Implements(f.typ) {
			return nil
		}
	} else if vt.AssignableTo(f.typ) {
		return nil
	}
	return &FieldTypeError{
		Field:    f.name,
		Expected: f.typ.String(),
		Actual:   vt.String(),
	}
}

func (f *Field) get(m *Model, stored interface{}) (interface{}, error) {
	if f.getCB != nil {
		return f.getCB(m, stored)
	}
	return stored, nil
}

func (f *Field) set(m *Model, value interface{}) (interface{}, error) {
	if f.setCB != nil {
		return f.setCB(m, value)
	}
	return value, nil
}

func (f *Field) coerce(value interface{}) interface{} {
	if f.coerceCB != nil {
		return f.coerceCB(value)
	}
	return value
}
