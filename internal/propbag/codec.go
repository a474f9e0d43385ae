package propbag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/seantiz/topoctl/internal/model"
)

// maxListLength bounds the list index a key may address when the bag
// carries no usable length for that list.
const maxListLength = 1 << 16

// Schema lists the top-level fields a target record accepts. A nil Schema
// accepts every field.
type Schema map[string]struct{}

// NewSchema returns a Schema accepting the given fields.
func NewSchema(fields ...string) Schema {
	s := make(Schema, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

// Allows reports whether field is accepted.
func (s Schema) Allows(field string) bool {
	if s == nil {
		return true
	}
	_, ok := s[field]
	return ok
}

// Fields returns the accepted fields in sorted order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Flatten converts r into a bag, namespacing every key under prefix.
// Nil values are omitted.
func Flatten(r model.Record, prefix string) Bag {
	b := Bag{}
	FlattenInto(b, r, prefix)
	return b
}

// FlattenInto writes the flattened form of r into dst.
func FlattenInto(dst Bag, r model.Record, prefix string) {
	prefix = normalizePrefix(prefix)
	for k, v := range r {
		flattenValue(dst, prefix+k, v)
	}
}

func flattenValue(dst Bag, key string, v any) {
	if m, ok := model.AsMap(v); ok {
		for k, vv := range m {
			flattenValue(dst, key+"."+k, vv)
		}
		return
	}
	switch x := v.(type) {
	case nil:
	case string:
		dst[key] = x
	case []any:
		dst[key+model.LengthSuffix] = strconv.Itoa(len(x))
		for i, e := range x {
			flattenValue(dst, fmt.Sprintf("%s[%d]", key, i), e)
		}
	default:
		dst[key] = fmt.Sprint(x)
	}
}

// Unflatten applies the entries of bag under prefix onto target in place.
// Entries outside schema, malformed keys, list indices at or beyond the
// list's length entry, and keys that would replace a nested record with a
// scalar (or the reverse) are ignored.
func Unflatten(bag Bag, prefix string, target model.Record, schema Schema) {
	prefix = normalizePrefix(prefix)
	var empty []string
	for _, k := range bag.Keys() {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok || rest == "" {
			continue
		}
		if list, ok := strings.CutSuffix(rest, model.LengthSuffix); ok {
			if bag[k] == "0" {
				empty = append(empty, list)
			}
			continue
		}
		path, ok := parseSteps(bag, prefix, rest)
		if !ok || !schema.Allows(path[0].name) {
			continue
		}
		assign(map[string]any(target), path, bag[k])
	}
	// Zero-length lists have no element keys; create them explicitly.
	for _, list := range empty {
		path, ok := parseSteps(bag, prefix, list)
		if !ok || !schema.Allows(path[0].name) {
			continue
		}
		assign(map[string]any(target), path, []any{})
	}
}

// step is one move through a record: a map key, or a list index when
// index is not negative.
type step struct {
	name  string
	index int
}

func parseSteps(bag Bag, prefix, path string) ([]step, bool) {
	segs, ok := model.ParsePath(path)
	if !ok {
		return nil, false
	}
	steps := make([]step, 0, len(segs))
	var walked strings.Builder
	walked.WriteString(prefix)
	for i, seg := range segs {
		if i > 0 {
			walked.WriteByte('.')
		}
		walked.WriteString(seg.Name)
		steps = append(steps, step{name: seg.Name, index: -1})
		for _, idx := range seg.Indices {
			if idx >= listLimit(bag, walked.String()) {
				return nil, false
			}
			steps = append(steps, step{index: idx})
			fmt.Fprintf(&walked, "[%d]", idx)
		}
	}
	return steps, true
}

// listLimit returns the number of elements the list at key may hold.
func listLimit(bag Bag, key string) int {
	if v, ok := bag[key+model.LengthSuffix]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < maxListLength {
			return n
		}
	}
	return maxListLength
}

// assign stores leaf at path below cur and returns the updated value for
// cur's slot. leaf is a string or an empty list. Nothing is modified when
// the path conflicts with the existing shape.
func assign(cur any, path []step, leaf any) (any, bool) {
	if len(path) == 0 {
		if _, ok := leaf.(string); ok {
			if !isScalar(cur) {
				return nil, false
			}
			return leaf, true
		}
		if cur == nil {
			return []any{}, true
		}
		if _, ok := cur.([]any); ok {
			return cur, true
		}
		return nil, false
	}

	s := path[0]
	if s.index < 0 {
		m, ok := model.AsMap(cur)
		if !ok {
			if cur != nil {
				return nil, false
			}
			m = map[string]any{}
		}
		child, ok := assign(m[s.name], path[1:], leaf)
		if !ok {
			return nil, false
		}
		m[s.name] = child
		return m, true
	}

	l, ok := cur.([]any)
	if !ok && cur != nil {
		return nil, false
	}
	var elem any
	if s.index < len(l) {
		elem = l[s.index]
	}
	child, ok := assign(elem, path[1:], leaf)
	if !ok {
		return nil, false
	}
	for len(l) <= s.index {
		l = append(l, nil)
	}
	l[s.index] = child
	return l, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string:
		return true
	}
	return false
}

// Decode unflattens the entries under prefix into a fresh record and
// decodes it into out, which must be a pointer to a struct tagged with
// mapstructure tags. Unknown keys are ignored.
func Decode(bag Bag, prefix string, out any) error {
	r := model.Record{}
	Unflatten(bag, prefix, r, nil)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(r)); err != nil {
		return fmt.Errorf("decoding bag: %w", err)
	}
	return nil
}
