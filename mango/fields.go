package mango

import (
	"fmt"
	"reflect"
)

// NewConstantField declares a field that becomes write-once after the
// document is persisted: once the document has an id, only re-setting the
// field to its current value is allowed. Fresh unsaved documents can
// change it freely. A custom set callback replaces this behavior.
func NewConstantField(name string, opts ...FieldOption) *Field {
	f := NewField(name, opts...)
	if f.setCB == nil {
		f.setCB = func(m *Model, value interface{}) (interface{}, error) {
			if m.ID() != nil {
				// Compare against the stored value directly; going
				// through read would trigger default population.
				if cur, ok := m.doc[f.StorageKey()]; ok {
					if !reflect.DeepEqual(cur, value) {
						return nil, &ConstantFieldError{Field: f.name}
					}
				}
			}
			return value, nil
		}
	}
	return f
}

// EnumChoices produces the accepted value set for an enum field. It
// receives the document being written so legality can depend on the
// instance.
type EnumChoices func(m *Model) []interface{}

// StaticChoices adapts a fixed value list into an EnumChoices producer.
func StaticChoices(values ...interface{}) EnumChoices {
	return func(*Model) []interface{} { return values }
}

// NewEnumField declares a field that only accepts values from the set the
// choices producer yields. Rejections report the offending value but never
// the accepted set, which may come from an exhaustible source. A custom
// set callback replaces this behavior.
func NewEnumField(name string, choices EnumChoices, opts ...FieldOption) *Field {
	f := NewField(name, opts...)
	if f.setCB == nil {
		f.setCB = func(m *Model, value interface{}) (interface{}, error) {
			for _, accepted := range choices(m) {
				if reflect.DeepEqual(accepted, value) {
					return value, nil
				}
			}
			return nil, &EnumValueError{Field: f.name, Value: value}
		}
	}
	return f
}

func typeName(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
