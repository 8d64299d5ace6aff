// Package value provides helpers for the schema-less runtime values that flow
// through validation and binding.
//
// Values carry no type tag of their own. The canonical representation is:
// nil, bool, string, []byte, int64, float64, []any and map[string]any.
// Integers that do not fit int64 are kept as uint64. Normalize converts the
// shapes produced by encoding/json, gopkg.in/yaml.v3 and hand-written Go
// literals into that form.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Kind is the dynamic kind of a value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
	KindBytes
	KindInt
	KindFloat
	KindList
	KindMap
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBool:    "boolean",
	KindString:  "string",
	KindBytes:   "bytes",
	KindInt:     "integer",
	KindFloat:   "float",
	KindList:    "list",
	KindMap:     "mapping",
	KindUnknown: "unknown",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindOf returns the dynamic kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case []byte:
		return KindBytes
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case json.Number:
		if _, err := v.(json.Number).Int64(); err == nil {
			return KindInt
		}
		return KindFloat
	case float32, float64:
		return KindFloat
	case []any:
		return KindList
	case map[string]any, map[any]any:
		return KindMap
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return KindList
	case reflect.Map:
		return KindMap
	}
	return KindUnknown
}

// Int64 extracts an integer value. Floats are not integers, even when whole.
// ok is false for non-integers and for unsigned values above math.MaxInt64.
func Int64(v any) (n int64, ok bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return uintToInt(uint64(x))
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return uintToInt(x)
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}

func uintToInt(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

// IsInteger reports whether v is an integer of any width, including
// unsigned values too large for int64.
func IsInteger(v any) bool {
	return KindOf(v) == KindInt
}

// IsNumber reports whether v is an integer or a float.
func IsNumber(v any) bool {
	k := KindOf(v)
	return k == KindInt || k == KindFloat
}

// List returns v as a []any. []any is returned as-is; other slice types
// (except []byte) are copied element-wise.
func List(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []byte, nil:
		return nil, false
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Map returns v as a map[string]any. keysOK is false when v is a mapping
// with at least one non-string key; isMap is false when v is not a mapping.
func Map(v any) (m map[string]any, isMap bool, keysOK bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true, true
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out, true, true
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			s, ok := k.(string)
			if !ok {
				return nil, true, false
			}
			out[s] = item
		}
		return out, true, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false, false
	}
	if rv.Type().Key().Kind() != reflect.String {
		return nil, true, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true, true
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize converts v into the canonical representation. Mappings with
// non-string keys are kept as map[any]any (with normalized values) so that
// validation can reject them.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x
	case []byte:
		return x
	case float32:
		return float64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			s, ok := k.(string)
			if !ok {
				return normalizeAnyMap(x)
			}
			out[s] = Normalize(item)
		}
		return out
	}

	if IsInteger(v) {
		if n, ok := Int64(v); ok {
			return n
		}
		return v
	}
	if list, ok := List(v); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = Normalize(item)
		}
		return out
	}
	if m, isMap, keysOK := Map(v); isMap && keysOK {
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = Normalize(item)
		}
		return out
	}
	return v
}

func normalizeAnyMap(m map[any]any) map[any]any {
	out := make(map[any]any, len(m))
	for k, item := range m {
		out[k] = Normalize(item)
	}
	return out
}

// String renders a scalar value the way it appears on a command line.
// ok is false for nulls, lists and mappings.
func String(v any) (s string, ok bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case json.Number:
		return x.String(), true
	}
	if n, ok := Int64(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	if u, ok := v.(uint64); ok {
		return strconv.FormatUint(u, 10), true
	}
	if u, ok := v.(uint); ok {
		return strconv.FormatUint(uint64(u), 10), true
	}
	return "", false
}

// Describe returns a short human-readable rendering of v for error messages.
func Describe(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	if s, ok := String(v); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil || len(data) > 80 {
		return fmt.Sprintf("<%s>", KindOf(v))
	}
	return string(data)
}
