// Package session keeps the state a caller threads between rule
// applications: the current model, the baseline dirtiness is measured
// from, and the accumulated dirty tree.
//
// Each update tags new array elements, applies the rule tree with the
// current model as the previous document, and folds the result into the
// dirty tree. An update that hands back the current model unchanged is a
// no-op and returns the same reference.
//
// Thread-safety: a Session is safe for concurrent use; updates are
// serialized.
package session
