package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/doc"
)

// num reads a numeric field from a record.
func num(t testing.TB, d doc.Value, key string) float64 {
	t.Helper()
	v, err := doc.Get(d, key)
	require.NoError(t, err)
	f, ok := doc.AsFloat(v)
	require.True(t, ok, "field %q is %s", key, doc.TypeName(v))
	return f
}

// copyOf returns a computed rule that copies a top-level field.
func copyOf(key string) Rule {
	return Computed(func(d doc.Value) (doc.Value, error) {
		return doc.Get(d, key)
	})
}

// plus returns a computed rule yielding field key + n.
func plus(t testing.TB, key string, n float64) Rule {
	return Computed(func(d doc.Value) (doc.Value, error) {
		return doc.Number(num(t, d, key) + n), nil
	})
}

func changed(key string) Predicate {
	return PropertyChanged(Path(key))
}
