// Package validation checks documents with validators composed the same way
// rules are: leaves gated by predicates, record shapes, and per-element
// array validators.
//
// A validator yields a Result. Invalid input is a *Failure result, never a
// Go error; errors are reserved for validators applied to documents of the
// wrong shape.
package validation
