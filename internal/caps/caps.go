// Package caps describes media capability sets and their intersection.
//
// A capability set is an ordered list of structures, each naming a media
// type plus optional field constraints. Two sets are compatible when any
// pair of structures shares a media type and every field constrained on
// both sides has at least one value in common.
package caps

import (
	"fmt"
	"sort"
	"strings"
)

// Structure is one media type with optional field constraints.
// A field maps to the set of acceptable values; a field absent from a
// structure is unconstrained.
type Structure struct {
	MediaType string
	Fields    map[string][]string
}

// Caps is a set of media capabilities. The zero value matches nothing.
type Caps struct {
	any     bool
	structs []Structure
}

// NewAny returns a capability set that intersects with everything.
func NewAny() *Caps {
	return &Caps{any: true}
}

// New returns a capability set with one bare structure per media type.
func New(mediaTypes ...string) *Caps {
	c := &Caps{}
	for _, mt := range mediaTypes {
		c.structs = append(c.structs, Structure{MediaType: mt})
	}
	return c
}

// DefaultRaw returns the built-in raw video capability set used to filter
// source candidates when the caller has not supplied its own.
func DefaultRaw() *Caps {
	return New("video/x-raw-yuv", "video/x-raw-rgb")
}

// Parse parses a capability string. Structures are separated by ";",
// fields by ",". A field value is either a single token or a set written
// as "{a,b,c}".
//
//	video/x-raw-yuv, format={I420,I422}; video/x-raw-rgb
func Parse(s string) (*Caps, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("caps: empty string")
	}
	if s == "ANY" {
		return NewAny(), nil
	}

	c := &Caps{}
	for _, part := range strings.Split(s, ";") {
		st, err := parseStructure(part)
		if err != nil {
			return nil, err
		}
		c.structs = append(c.structs, st)
	}
	return c, nil
}

func parseStructure(s string) (Structure, error) {
	fields := splitFields(s)
	if len(fields) == 0 || strings.TrimSpace(fields[0]) == "" {
		return Structure{}, fmt.Errorf("caps: empty structure in %q", s)
	}

	st := Structure{MediaType: strings.TrimSpace(fields[0])}
	if strings.Contains(st.MediaType, "=") {
		return Structure{}, fmt.Errorf("caps: structure %q has no media type", s)
	}

	for _, f := range fields[1:] {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			return Structure{}, fmt.Errorf("caps: field %q is not key=value", strings.TrimSpace(f))
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return Structure{}, fmt.Errorf("caps: empty field name in %q", s)
		}
		values := parseValues(val)
		if len(values) == 0 {
			return Structure{}, fmt.Errorf("caps: field %q has no values", key)
		}
		if st.Fields == nil {
			st.Fields = make(map[string][]string)
		}
		st.Fields[key] = values
	}
	return st, nil
}

// splitFields splits on commas that are not inside a {...} value set.
func splitFields(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func parseValues(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "{")
	v = strings.TrimSuffix(v, "}")

	var values []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			values = append(values, p)
		}
	}
	return values
}

// IsAny reports whether the set matches everything.
func (c *Caps) IsAny() bool {
	return c != nil && c.any
}

// IsEmpty reports whether the set matches nothing.
func (c *Caps) IsEmpty() bool {
	return c == nil || (!c.any && len(c.structs) == 0)
}

// Structures returns the structures of the set. Nil for ANY caps.
func (c *Caps) Structures() []Structure {
	if c == nil {
		return nil
	}
	return c.structs
}

// Intersects reports whether the two sets have a non-empty intersection.
func (c *Caps) Intersects(o *Caps) bool {
	if c.IsEmpty() || o.IsEmpty() {
		return false
	}
	if c.IsAny() || o.IsAny() {
		return true
	}
	for _, a := range c.structs {
		for _, b := range o.structs {
			if structuresIntersect(a, b) {
				return true
			}
		}
	}
	return false
}

func structuresIntersect(a, b Structure) bool {
	if a.MediaType != b.MediaType {
		return false
	}
	for key, av := range a.Fields {
		bv, ok := b.Fields[key]
		if !ok {
			continue
		}
		if !valuesIntersect(av, bv) {
			return false
		}
	}
	return true
}

func valuesIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// String renders the set in the same syntax Parse accepts.
func (c *Caps) String() string {
	if c.IsAny() {
		return "ANY"
	}
	if c.IsEmpty() {
		return "EMPTY"
	}

	parts := make([]string, 0, len(c.structs))
	for _, st := range c.structs {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, "; ")
}

// String renders one structure.
func (s Structure) String() string {
	if len(s.Fields) == 0 {
		return s.MediaType
	}

	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.MediaType)
	for _, k := range keys {
		vals := s.Fields[k]
		b.WriteString(", ")
		b.WriteString(k)
		b.WriteString("=")
		if len(vals) == 1 {
			b.WriteString(vals[0])
		} else {
			b.WriteString("{" + strings.Join(vals, ",") + "}")
		}
	}
	return b.String()
}
