package vehicle

import (
	"fmt"
	"strconv"
)

// Status is one vehicle's status document: a deeply nested, loosely typed
// JSON mapping as delivered by the Zeekr cloud. Numeric fields frequently
// arrive as numeric-looking strings, and an absent key means "unknown",
// which is distinct from a present-but-zero value. All accessors therefore
// report presence alongside the value.
type Status map[string]any

// Get walks the nested document along path. The second return is false when
// any segment is missing or not a mapping.
func (s Status) Get(path ...string) (any, bool) {
	var cur any = map[string]any(s)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path rendered as a string. Vendor status codes
// are compared in string form regardless of how the JSON decoder typed them.
func (s Status) String(path ...string) (string, bool) {
	v, ok := s.Get(path...)
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// Float parses the value at path as a number, accepting both JSON numbers
// and numeric strings.
func (s Status) Float(path ...string) (float64, bool) {
	v, ok := s.Get(path...)
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Patch sets the value at path, creating intermediate mappings as needed.
// Command-issuing entities use this for optimistic in-place updates.
func (s Status) Patch(value any, path ...string) {
	if len(path) == 0 {
		return
	}
	cur := map[string]any(s)
	for _, key := range path[:len(path)-1] {
		next, ok := asMap(cur[key])
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

// Merge updates the sub-document under key with the supplied fields,
// creating it if absent. Existing fields not named in extra are kept.
func (s Status) Merge(key string, extra map[string]any) {
	if len(extra) == 0 {
		return
	}
	sub, ok := asMap(s[key])
	if !ok {
		sub = map[string]any{}
		s[key] = sub
	}
	for k, v := range extra {
		sub[k] = v
	}
}

// Clone returns a deep copy of the document. Readers get copies so in-place
// patches cannot race a concurrent walk of the nested maps.
func (s Status) Clone() Status {
	return Status(cloneMap(s))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Status:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Status:
		return m, true
	}
	return nil, false
}
