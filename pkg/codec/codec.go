// Package codec converts parameter values to and from URL-safe text.
//
// The default codec is JSON: Serialize produces JSON text and Deserialize
// reverses it, reporting failure instead of returning an error so a caller
// can fall back to a default. Percent-encoding is left to the query layer.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// Serialize encodes v as JSON text. A nil v, or a value JSON cannot
// represent (channels, funcs, NaN), yields "".
func Serialize(v any) string {
	if v == nil {
		return ""
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// Deserialize decodes JSON text. It returns false when text is not valid
// JSON. Objects decode to map[string]any, arrays to []any and numbers to
// float64.
func Deserialize(text string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return v, true
}

// DeserializeInto decodes JSON text into a value of type T.
func DeserializeInto[T any](text string) (T, bool) {
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// ToArray normalizes a single value or a list into a list.
// nil becomes an empty list, a []any is returned unchanged, any other slice
// or array is spread into its elements, and a scalar becomes a one-element
// list. Byte slices count as scalars.
func ToArray(v any) []any {
	if v == nil {
		return []any{}
	}
	if list, ok := v.([]any); ok {
		return list
	}
	if _, ok := v.([]byte); ok {
		return []any{v}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	default:
		return []any{v}
	}
}

// Stringify converts v to its plain string form, the conversion used when a
// value is written without serialization.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	}
	return formatValue(reflect.ValueOf(v))
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// Equal compares two values by their JSON text. Maps marshal with sorted
// keys; struct fields keep declaration order, so structs only equal maps
// whose sorted keys happen to line up.
func Equal(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}
