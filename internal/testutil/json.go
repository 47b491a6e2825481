package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/doc"
)

// JSON decodes a document literal, failing the test on malformed input.
func JSON(t testing.TB, s string) doc.Value {
	t.Helper()
	v, err := doc.Decode([]byte(s))
	require.NoError(t, err, "bad document literal: %s", s)
	return v
}

// Object decodes a record literal.
func Object(t testing.TB, s string) *doc.Object {
	t.Helper()
	obj, ok := JSON(t, s).(*doc.Object)
	require.True(t, ok, "literal is not an object: %s", s)
	return obj
}
