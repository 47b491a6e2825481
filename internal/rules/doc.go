// Package rules implements the rule algebra and the single-pass application
// engine that recomputes derived fields of a document.
//
// A rule tree is plain data built once from constructors (Constant,
// Computed, When, Shape, Scope, Items, Chain, LogTo) and applied on every
// change with Apply(rule, current, previous).
//
// EVALUATION MODEL:
//
// Every rule is evaluated against a frame:
//   - the ambient document and its previous version, which predicates and
//     computed functions read;
//   - the target value, which is what the rule replaces (the whole document at
//     the root, a field's current value inside Shape, the candidate value
//     inside a Chain).
//
// Shape keeps the ambient document of its parent for every field, so a
// field rule can read its siblings. Scope and Items narrow the ambient
// document to the target itself. A When whose predicate is false returns the
// target untouched.
//
// STRUCTURAL SHARING:
//
// Every recursion reports whether its result differs (doc.Same) from its
// target. Containers allocate only when a child changed, so any subtree no
// rule touched is returned by reference. Applying a tree of When-guarded
// rules to (doc, doc) returns doc itself.
//
// Field evaluation inside one Shape never sees sibling results from the same
// pass. Rules that depend on each other converge by calling Apply again with
// the previous result as the new input; the engine never loops on its own.
//
// Apply is synchronous, holds no state between calls, and never mutates its
// inputs, so it is safe to call concurrently.
package rules
