package mango

import "reflect"

// GetField reads a declared field and asserts its type at the call site,
// giving attribute access a compile-checked shape. A nil stored value
// yields T's zero value.
func GetField[T any](m *Model, name string) (T, error) {
	var zero T
	v, err := m.Get(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, &FieldTypeError{
			Field:    name,
			Expected: typeOfName[T](),
			Actual:   typeName(v),
		}
	}
	return t, nil
}

// SetField writes a declared field through the usual write path. The type
// parameter only constrains the call site; the field's own declared type
// still governs validation.
func SetField[T any](m *Model, name string, value T) error {
	return m.Set(name, value)
}

func typeOfName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
