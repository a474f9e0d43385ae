package propbag

import (
	"log/slog"
	"sort"
	"strings"
)

// Bag is a flat mapping from dotted key to string value.
type Bag map[string]string

// Get returns the value for key, or "" when absent.
func (b Bag) Get(key string) string {
	return b[key]
}

// Set stores value under key.
func (b Bag) Set(key, value string) {
	b[key] = value
}

// Overlay copies every entry of other into b, replacing collisions, and
// returns b.
func (b Bag) Overlay(other Bag) Bag {
	for k, v := range other {
		b[k] = v
	}
	return b
}

// Clone returns a copy of b.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Keys returns the keys of b in sorted order.
func (b Bag) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithPrefix returns the entries under prefix with the prefix removed.
func (b Bag) WithPrefix(prefix string) Bag {
	prefix = normalizePrefix(prefix)
	out := Bag{}
	for k, v := range b {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = v
		}
	}
	return out
}

// LogValue renders the bag as a sorted group for debug logging.
func (b Bag) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(b))
	for _, k := range b.Keys() {
		attrs = append(attrs, slog.String(k, b[k]))
	}
	return slog.GroupValue(attrs...)
}

func normalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, ".") {
		return prefix
	}
	return prefix + "."
}
