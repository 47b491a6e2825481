package doc

import (
	"fmt"
	"strconv"
	"strings"
)

// PathError reports a selector that walked through an absent or scalar value.
type PathError struct {
	Path []string // Full path being resolved
	At   int      // Index of the segment that could not be resolved
	Kind string   // TypeName of the value found at Path[:At]
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("cannot read %q of %s value at %q",
		e.Path[e.At], e.Kind, strings.Join(e.Path[:e.At], "."))
}

// ParsePath splits a dotted path ("person.name", "items.0.price").
// The empty string is the root path.
func ParsePath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// Get walks v by record keys and decimal array indexes.
//
// A missing final key or out-of-range index yields nil (absent) with no
// error. Walking through an absent, null, or scalar intermediate is a
// *PathError.
func Get(v Value, path ...string) (Value, error) {
	cur := v
	for i, seg := range path {
		switch node := cur.(type) {
		case *Object:
			cur = node.Lookup(seg)
		case *Array:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, &PathError{Path: path, At: i, Kind: "array"}
			}
			cur = node.At(idx)
		default:
			return nil, &PathError{Path: path, At: i, Kind: TypeName(cur)}
		}
	}
	return cur, nil
}
