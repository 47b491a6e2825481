// Package tracking records which paths of a document have diverged from a
// baseline across a series of updates.
//
// Dirtiness accumulates: once a path is reported dirty it stays dirty in
// every later tree derived from it, until the caller starts over with
// Create. Leaves compare by doc.Same, so a record or array that was kept by
// reference is clean without being walked value by value.
package tracking
