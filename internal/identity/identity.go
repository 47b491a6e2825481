// Package identity assigns and reads stable identity tokens on array
// elements so that elements can be correlated across edits regardless of
// their position.
//
// The token is stored as an ordinary record field (Key). Callers that copy
// an element with doc.Object.With carry the token along; nothing is kept in
// side tables.
package identity

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/derive/internal/doc"
)

// Key is the record field holding an element's identity token.
const Key = "_uid"

// Manager tags untagged array elements with tokens from its generator.
//
// A Manager holds no per-document state; the generator is the only thing
// that advances. Tokens from one manager never collide.
type Manager struct {
	gen TokenGenerator
}

// Option configures a Manager.
type Option func(*Manager)

// WithGenerator sets the token generator.
// Default: UUIDv7Generator.
func WithGenerator(gen TokenGenerator) Option {
	return func(m *Manager) {
		m.gen = gen
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{gen: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultManager = NewManager()

// Ensure tags every untagged record element of every array in v using a
// UUIDv7-backed manager. See Manager.Ensure.
func Ensure(v doc.Value) doc.Value {
	return defaultManager.Ensure(v)
}

// Ensure walks v and gives every record element of an array that lacks Key
// a fresh token. Records outside arrays are searched for nested arrays but
// are not tagged themselves.
//
// Idempotent: already-tagged elements keep their token and reference, and
// when nothing needed a token the very same v is returned without
// allocating.
func (m *Manager) Ensure(v doc.Value) doc.Value {
	out, _ := m.ensure(v, false)
	return out
}

func (m *Manager) ensure(v doc.Value, element bool) (doc.Value, bool) {
	switch node := v.(type) {
	case *doc.Object:
		var changes []doc.Pair
		for k, child := range node.All() {
			if next, changed := m.ensure(child, false); changed {
				changes = append(changes, doc.P(k, next))
			}
		}
		if element && !node.Has(Key) {
			changes = append(changes, doc.P(Key, doc.String(m.gen.Generate())))
		}
		if len(changes) == 0 {
			return node, false
		}
		return node.WithAll(changes...), true

	case *doc.Array:
		var elems []doc.Value
		for i, child := range node.All() {
			next, changed := m.ensure(child, true)
			if !changed {
				continue
			}
			if elems == nil {
				elems = node.Values()
			}
			elems[i] = next
		}
		if elems == nil {
			return node, false
		}
		return doc.NewArray(elems...), true

	default:
		return v, false
	}
}

// Of returns the identity token of an element, if it has a string token.
func Of(v doc.Value) (string, bool) {
	obj, ok := v.(*doc.Object)
	if !ok {
		return "", false
	}
	tok, ok := obj.Lookup(Key).(doc.String)
	return string(tok), ok
}

// Index correlates elements of one array with elements of another.
//
// Tagged elements are matched by token; the first occurrence of a token
// wins. Untagged record or array elements are matched by reference, which
// covers elements carried over verbatim before they were ever tagged.
type Index struct {
	byToken map[string]int
	byRef   map[doc.Value]int
}

// NewIndex indexes arr. A nil arr yields an index that matches nothing.
func NewIndex(arr *doc.Array) *Index {
	ix := &Index{
		byToken: make(map[string]int, arr.Len()),
		byRef:   make(map[doc.Value]int),
	}
	for i, elem := range arr.All() {
		if tok, ok := Of(elem); ok {
			if _, seen := ix.byToken[tok]; !seen {
				ix.byToken[tok] = i
			}
			continue
		}
		switch elem.(type) {
		case *doc.Object, *doc.Array:
			if _, seen := ix.byRef[elem]; !seen {
				ix.byRef[elem] = i
			}
		}
	}
	return ix
}

// Match returns the position of elem's counterpart in the indexed array.
func (ix *Index) Match(elem doc.Value) (int, bool) {
	if tok, ok := Of(elem); ok {
		i, found := ix.byToken[tok]
		return i, found
	}
	switch elem.(type) {
	case *doc.Object, *doc.Array:
		i, found := ix.byRef[elem]
		return i, found
	}
	return 0, false
}

// Duplicates returns the tokens carried by more than one element of arr,
// in order of their second occurrence.
func Duplicates(arr *doc.Array) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	reported := mapset.NewThreadUnsafeSet[string]()
	var dups []string
	for _, elem := range arr.All() {
		tok, ok := Of(elem)
		if !ok {
			continue
		}
		if !seen.Add(tok) && reported.Add(tok) {
			dups = append(dups, tok)
		}
	}
	return dups
}
