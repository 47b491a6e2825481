package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	v := NewObject(P("b", Int(1)), P("a", Int(2)), P("c", NewObject(P("z", Bool(true)), P("y", Null{}))))

	data, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":null,"z":true}}`, string(data))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogates (0xD83D...) which sort before U+FB01 in UTF-16
	// but after it in UTF-8.
	v := NewObject(P("ﬁ", Int(1)), P("\U0001F600", Int(2)))

	data, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"ﬁ\":1}", string(data))
}

func TestMarshalCanonical_Strings(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"quote and backslash", `"\`, `"\"\\"`},
		{"newline", "a\nb", `"a\nb"`},
		{"control", "\x01", `"\u0001"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"nfc normalized", "e\u0301", "\"\u00e9\""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalCanonical(String(tc.in))
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))
		})
	}
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	testCases := []struct {
		in   Value
		want string
	}{
		{Int(-3), "-3"},
		{Float(20), "20"},
		{Float(0.05), "0.05"},
		{Float(1e21), "1e+21"},
		{Float(1e-7), "1e-7"},
		{Float(0), "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			data, err := MarshalCanonical(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))
		})
	}
}

func TestMarshalCanonical_RejectsAbsent(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}
