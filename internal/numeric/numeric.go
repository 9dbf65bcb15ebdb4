// Package numeric classifies Go numeric values and converts between them
// without losing the distinction between integers and floats.
package numeric

import "reflect"

// IsNumber reports whether value holds any Go integer or float kind.
func IsNumber(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether value holds a float kind.
func IsFloat(value any) bool {
	if value == nil {
		return false
	}
	kind := reflect.ValueOf(value).Kind()
	return kind == reflect.Float32 || kind == reflect.Float64
}

// ToFloat64 converts any numeric value to float64. The second result is false
// when value is not a number.
func ToFloat64(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// Equal compares two values numerically when both are numbers. The second
// result is false when either side is not a number.
func Equal(a, b any) (bool, bool) {
	fa, okA := ToFloat64(a)
	fb, okB := ToFloat64(b)
	if !okA || !okB {
		return false, false
	}
	return fa == fb, true
}
