package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LengthSuffix marks the bookkeeping key that carries a list's element
// count in a flattened bag.
const LengthSuffix = "_length"

// ErrInvalidFieldName is returned for field names that cannot be
// addressed by a dotted path.
var ErrInvalidFieldName = errors.New("invalid field name")

// PathSegment is one element of a dotted path. Indices holds the list
// indices applied after Name, outermost first; it is empty when the
// segment does not address a list element.
type PathSegment struct {
	Name    string
	Indices []int
}

// String formats the segment as it appears in a path.
func (s PathSegment) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, i := range s.Indices {
		fmt.Fprintf(&b, "[%d]", i)
	}
	return b.String()
}

// ParsePath splits a dotted path such as "vnfs.vnf[0].vnf-id" or
// "matrix[1][0]" into segments. It reports false for malformed paths.
func ParsePath(path string) ([]PathSegment, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	segs := make([]PathSegment, 0, len(parts))
	for _, p := range parts {
		seg, ok := parseSegment(p)
		if !ok {
			return nil, false
		}
		segs = append(segs, seg)
	}
	return segs, true
}

func parseSegment(s string) (PathSegment, bool) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.IndexByte(s, ']') >= 0 {
			return PathSegment{}, false
		}
		return PathSegment{Name: s}, true
	}
	if open == 0 || strings.IndexByte(s[:open], ']') >= 0 {
		return PathSegment{}, false
	}
	seg := PathSegment{Name: s[:open]}
	rest := s[open:]
	for rest != "" {
		if rest[0] != '[' {
			return PathSegment{}, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return PathSegment{}, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil || idx < 0 {
			return PathSegment{}, false
		}
		seg.Indices = append(seg.Indices, idx)
		rest = rest[end+1:]
	}
	return seg, true
}

// CheckFieldName reports an error when name cannot round-trip through a
// flattened bag.
func CheckFieldName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidFieldName)
	case strings.ContainsAny(name, ".[]"):
		return fmt.Errorf("%w: %q contains one of . [ ]", ErrInvalidFieldName, name)
	case strings.HasSuffix(name, LengthSuffix):
		return fmt.Errorf("%w: %q ends in %s", ErrInvalidFieldName, name, LengthSuffix)
	}
	return nil
}
