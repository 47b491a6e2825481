package tracking

import (
	"iter"

	"github.com/roach88/derive/internal/doc"
)

// Info is a sealed interface over the dirty tree node types.
// Only Leaf, *Record, and *List implement it. A nil Info is an empty tree
// with nothing dirty.
type Info interface {
	trackingInfo() // Sealed - only these types implement it
}

// Leaf marks a scalar, or a whole subtree, as dirty or clean.
type Leaf bool

func (Leaf) trackingInfo() {}

// Record holds the dirty state of each field of a record, in document order.
type Record struct {
	keys   []string
	fields map[string]Info
}

func (*Record) trackingInfo() {}

func newRecord(n int) *Record {
	return &Record{keys: make([]string, 0, n), fields: make(map[string]Info, n)}
}

func (r *Record) set(key string, info Info) {
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = info
}

// Field returns the subtree for key, or nil when the field is not tracked.
func (r *Record) Field(key string) Info {
	if r == nil {
		return nil
	}
	return r.fields[key]
}

// Keys returns the tracked field names. The slice is a copy.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

// All iterates fields in document order.
func (r *Record) All() iter.Seq2[string, Info] {
	return func(yield func(string, Info) bool) {
		if r == nil {
			return
		}
		for _, k := range r.keys {
			if !yield(k, r.fields[k]) {
				return
			}
		}
	}
}

// Entry is the dirty state of one array element.
type Entry struct {
	// ID is the element's identity token, or its index when untagged.
	ID   string
	Info Info
}

// List holds the dirty state of array elements, in current document order.
type List struct {
	entries []Entry
}

func (*List) trackingInfo() {}

// Entries returns a copy of the entries.
func (l *List) Entries() []Entry {
	if l == nil {
		return nil
	}
	return append([]Entry(nil), l.entries...)
}

// Lookup returns the subtree of the element with the given ID.
func (l *List) Lookup(id string) Info {
	if l == nil {
		return nil
	}
	for _, e := range l.entries {
		if e.ID == id {
			return e.Info
		}
	}
	return nil
}

// Any reports whether anything in info is dirty.
func Any(info Info) bool {
	switch n := info.(type) {
	case Leaf:
		return bool(n)
	case *Record:
		for _, sub := range n.All() {
			if Any(sub) {
				return true
			}
		}
	case *List:
		for _, e := range n.entries {
			if Any(e.Info) {
				return true
			}
		}
	}
	return false
}

// IsDirty reports whether anything at or below path is dirty. Array
// elements are addressed by identity token, or by index when untagged.
// A Leaf met before the end of the path answers for its whole subtree.
func IsDirty(info Info, path ...string) bool {
	cur := info
	for _, seg := range path {
		switch n := cur.(type) {
		case Leaf:
			return bool(n)
		case *Record:
			cur = n.Field(seg)
		case *List:
			cur = n.Lookup(seg)
		default:
			return false
		}
	}
	return Any(cur)
}

// ToValue renders info as a document: leaves as booleans, records as
// records, and lists as arrays of {"id", "dirty"} records. A nil Info
// renders as false.
func ToValue(info Info) doc.Value {
	switch n := info.(type) {
	case Leaf:
		return doc.Bool(n)
	case *Record:
		pairs := make([]doc.Pair, 0, len(n.keys))
		for k, sub := range n.All() {
			pairs = append(pairs, doc.P(k, ToValue(sub)))
		}
		return doc.NewObject(pairs...)
	case *List:
		elems := make([]doc.Value, len(n.entries))
		for i, e := range n.entries {
			elems[i] = doc.NewObject(
				doc.P("id", doc.String(e.ID)),
				doc.P("dirty", ToValue(e.Info)),
			)
		}
		return doc.NewArray(elems...)
	default:
		return doc.Bool(false)
	}
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	return doc.Marshal(ToValue(r))
}

// MarshalJSON implements json.Marshaler.
func (l *List) MarshalJSON() ([]byte, error) {
	return doc.Marshal(ToValue(l))
}
