package tracking

import (
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/identity"
)

// Create starts a tracking session. With a nil baseline the tree is empty;
// otherwise it mirrors the baseline with every path clean.
func Create(baseline doc.Value) Info {
	if baseline == nil {
		return nil
	}
	return mark(baseline, false)
}

// DetectChanges compares cur against baseline and merges the result with
// prev, the tree returned by the previous call (or by Create).
//
// A leaf is dirty when its value is not doc.Same as the baseline's, or when
// prev already had it dirty. Records recurse field-wise; a field that is
// gone from cur but present in the baseline, or dirty in prev, is reported
// as a dirty leaf. Arrays pair elements with the baseline by identity:
// unmatched current elements are wholly dirty, and baseline elements with
// no current counterpart are dropped. Untagged records and arrays pair by
// reference, carrying prev's flags from their baseline position. Scalar
// elements pair by position.
// A change of node kind marks the whole subtree dirty.
func DetectChanges(cur, baseline doc.Value, prev Info) Info {
	if l, ok := prev.(Leaf); ok && bool(l) {
		return mark(cur, true)
	}

	switch c := cur.(type) {
	case *doc.Object:
		b, ok := baseline.(*doc.Object)
		if !ok {
			return mark(cur, true)
		}
		return detectRecord(c, b, prev)
	case *doc.Array:
		b, ok := baseline.(*doc.Array)
		if !ok {
			return mark(cur, true)
		}
		return detectList(c, b, prev)
	default:
		return Leaf(!doc.Same(cur, baseline) || Any(prev))
	}
}

func detectRecord(cur, baseline *doc.Object, prev Info) Info {
	prevRec, _ := prev.(*Record)
	out := newRecord(cur.Len())
	for k, v := range cur.All() {
		out.set(k, DetectChanges(v, baseline.Lookup(k), prevRec.Field(k)))
	}

	present := mapset.NewThreadUnsafeSet(cur.Keys()...)
	for _, k := range baseline.Keys() {
		if !present.Contains(k) {
			out.set(k, Leaf(true))
		}
	}
	for k, sub := range prevRec.All() {
		if !present.Contains(k) && !baseline.Has(k) && Any(sub) {
			out.set(k, Leaf(true))
		}
	}
	if len(out.keys) == 0 {
		return Leaf(false)
	}
	return out
}

func detectList(cur, baseline *doc.Array, prev Info) Info {
	prevList, _ := prev.(*List)
	ix := identity.NewIndex(baseline)

	out := &List{entries: make([]Entry, 0, cur.Len())}
	for i, elem := range cur.All() {
		id := elementID(i, elem)
		var info Info
		switch j, ok := ix.Match(elem); {
		case ok:
			// prev was keyed against the baseline's positions.
			info = DetectChanges(elem, baseline.At(j), prevList.Lookup(elementID(j, baseline.At(j))))
		case isScalar(elem):
			// Scalars carry no identity and pair up by position.
			info = DetectChanges(elem, baseline.At(i), prevList.Lookup(id))
		default:
			info = mark(elem, true)
		}
		out.entries = append(out.entries, Entry{ID: id, Info: info})
	}
	if len(out.entries) == 0 {
		return Leaf(false)
	}
	return out
}

// mark builds a tree mirroring v with every path set to dirty. An empty
// record or array becomes a single Leaf.
func mark(v doc.Value, dirty bool) Info {
	switch n := v.(type) {
	case *doc.Object:
		if n.Len() == 0 {
			return Leaf(dirty)
		}
		out := newRecord(n.Len())
		for k, sub := range n.All() {
			out.set(k, mark(sub, dirty))
		}
		return out
	case *doc.Array:
		if n.Len() == 0 {
			return Leaf(dirty)
		}
		out := &List{entries: make([]Entry, n.Len())}
		for i, elem := range n.All() {
			out.entries[i] = Entry{ID: elementID(i, elem), Info: mark(elem, dirty)}
		}
		return out
	default:
		return Leaf(dirty)
	}
}

func isScalar(v doc.Value) bool {
	switch v.(type) {
	case *doc.Object, *doc.Array:
		return false
	default:
		return true
	}
}

func elementID(i int, elem doc.Value) string {
	if id, ok := identity.Of(elem); ok {
		return id
	}
	return strconv.Itoa(i)
}
