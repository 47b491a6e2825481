// Package doc provides the immutable, JSON-like document model that rules
// are applied to.
//
// A document is a tree of records (*Object), ordered sequences (*Array), and
// scalars (Null, String, Int, Float, Bool). This package imports nothing
// internal; every other package builds on it.
//
// Key design constraints:
//   - Documents are never mutated. Every helper returns a new or reused value.
//   - Records and sequences are pointers, so Same reports reference identity
//     for them and value equality for scalars.
//   - A Go nil Value means "absent" (a missing key, or no correlated previous
//     element). It is distinct from Null, which is an explicit JSON null.
//   - Records keep insertion order for iteration and serialization, but
//     Equal ignores key order.
package doc
