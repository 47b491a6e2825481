// Package testutil provides deterministic helpers shared by package tests:
// predetermined identity tokens, a recording sink for loggers, and document
// literals.
//
// testutil imports only internal/doc so that any package's internal tests
// can use it without an import cycle.
package testutil
