// Package rawjson inspects values produced by encoding/json into an any.
package rawjson

import "strings"

// Object returns v as a JSON object.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Array returns v as a JSON array.
func Array(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// String returns v as a JSON string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Number returns v as a JSON number.
func Number(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// Path walks nested objects by key and returns the value found, if any.
func Path(v any, keys ...string) (any, bool) {
	cur := v
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether obj has key with a non-null value.
func Has(obj map[string]any, key string) bool {
	v, ok := obj[key]
	return ok && v != nil
}

// Truthy follows JSON-ish truthiness: false, 0, "", null and missing are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	default:
		return true
	}
}

// Strings collects the string elements of a JSON array.
// A bare string yields a single element; anything else yields nil.
func Strings(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		return nil
	}
}
