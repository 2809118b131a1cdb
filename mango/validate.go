package mango

import (
	"fmt"
	"reflect"
)

// LengthBetween validates that a string, slice, array, or map value has at
// least min elements, and at most max when max is positive.
func LengthBetween(min, max int) Validator {
	return func(value interface{}) error {
		v := reflect.ValueOf(value)
		switch v.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		default:
			return fmt.Errorf("value %v has no length", value)
		}
		n := v.Len()
		if n < min {
			return fmt.Errorf("minimum length is %d", min)
		}
		if max > 0 && n > max {
			return fmt.Errorf("maximum length is %d", max)
		}
		return nil
	}
}

// IntBetween validates that an integer value is at least min, and at most
// max when max is non-zero.
func IntBetween(min, max int64) Validator {
	return func(value interface{}) error {
		v := reflect.ValueOf(value)
		var n int64
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = v.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = int64(v.Uint())
		default:
			return fmt.Errorf("value %v is not an integer", value)
		}
		if n < min {
			return fmt.Errorf("minimum value is %d", min)
		}
		if max != 0 && n > max {
			return fmt.Errorf("maximum value is %d", max)
		}
		return nil
	}
}
