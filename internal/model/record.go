package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is a structured payload. Leaves are strings; nested containers
// are map[string]any and []any.
type Record map[string]any

// Normalize converts decoded JSON or protobuf values into a Record with
// string leaves. Nil values are dropped. Field names that a flattened
// bag cannot carry are rejected with ErrInvalidFieldName.
func Normalize(m map[string]any) (Record, error) {
	return normalizeMap(m, "")
}

func normalizeMap(m map[string]any, path string) (Record, error) {
	out := make(Record, len(m))
	for k, v := range m {
		if err := CheckFieldName(k); err != nil {
			if path != "" {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return nil, err
		}
		n, ok, err := normalizeValue(v, joinPath(path, k))
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = n
		}
	}
	return out, nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func normalizeValue(v any, path string) (any, bool, error) {
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		return x, true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true, nil
	case int:
		return strconv.Itoa(x), true, nil
	case int64:
		return strconv.FormatInt(x, 10), true, nil
	case json.Number:
		return x.String(), true, nil
	case Record:
		r, err := normalizeMap(x, path)
		return map[string]any(r), err == nil, err
	case map[string]any:
		r, err := normalizeMap(x, path)
		return map[string]any(r), err == nil, err
	case []any:
		list := make([]any, 0, len(x))
		for _, e := range x {
			n, ok, err := normalizeValue(e, fmt.Sprintf("%s[%d]", path, len(list)))
			if err != nil {
				return nil, false, err
			}
			if ok {
				list = append(list, n)
			}
		}
		return list, true, nil
	case []string:
		list := make([]any, len(x))
		for i, e := range x {
			list[i] = e
		}
		return list, true, nil
	default:
		return fmt.Sprint(x), true, nil
	}
}

// Clone returns a deep copy of r. Nested records come back as
// map[string]any.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if m, ok := AsMap(v); ok {
		return map[string]any(Record(m).Clone())
	}
	if l, ok := v.([]any); ok {
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// AsMap reports whether v is a nested record.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

// Merge returns a deep union of r and other. Values from other win for
// scalars and lists; nested records merge recursively.
func (r Record) Merge(other Record) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	mergeInto(out, other)
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := AsMap(v); ok {
			if dm, ok := AsMap(dst[k]); ok {
				mergeInto(dm, sm)
				continue
			}
		}
		dst[k] = cloneValue(v)
	}
}

// Lookup returns the string leaf at a dotted path.
func (r Record) Lookup(path string) (string, bool) {
	segs, ok := ParsePath(path)
	if !ok {
		return "", false
	}
	var cur any = map[string]any(r)
	for _, seg := range segs {
		m, ok := AsMap(cur)
		if !ok {
			return "", false
		}
		cur, ok = m[seg.Name]
		if !ok {
			return "", false
		}
		for _, i := range seg.Indices {
			l, ok := cur.([]any)
			if !ok || i >= len(l) {
				return "", false
			}
			cur = l[i]
		}
	}
	s, ok := cur.(string)
	return s, ok
}

// Section returns the nested record stored under name, or nil.
func (r Record) Section(name string) Record {
	if m, ok := AsMap(r[name]); ok {
		return Record(m)
	}
	return nil
}
