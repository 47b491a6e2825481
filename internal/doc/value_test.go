package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObject_KeepsInsertionOrder(t *testing.T) {
	o := NewObject(P("b", Int(1)), P("a", Int(2)), P("b", Int(3)))

	assert.Equal(t, []string{"b", "a"}, o.Keys())
	assert.Equal(t, Int(3), o.Lookup("b"), "last value wins for a repeated key")
	assert.Equal(t, 2, o.Len())
}

func TestNewObject_SkipsAbsentValues(t *testing.T) {
	o := NewObject(P("a", nil), P("b", Null{}))

	assert.False(t, o.Has("a"))
	assert.True(t, o.Has("b"), "explicit null is a value, not absence")
}

func TestObject_WithSharesUntouchedChildren(t *testing.T) {
	person := NewObject(P("name", String("Doe")))
	o := NewObject(P("person", person), P("n", Int(1)))

	n := o.With("n", Int(2))

	assert.NotSame(t, o, n)
	assert.Same(t, person, n.Lookup("person"))
	assert.Equal(t, Int(1), o.Lookup("n"), "receiver must not be mutated")
	assert.Equal(t, Int(2), n.Lookup("n"))
}

func TestObject_WithAllAppendsAndRemoves(t *testing.T) {
	o := NewObject(P("a", Int(1)), P("b", Int(2)), P("c", Int(3)))

	n := o.WithAll(P("b", nil), P("d", Int(4)), P("a", Int(10)))

	assert.Equal(t, []string{"a", "c", "d"}, n.Keys())
	assert.Equal(t, Int(10), n.Lookup("a"))
	assert.Equal(t, []string{"a", "b", "c"}, o.Keys())
}

func TestObject_WithoutMissingKeyReturnsReceiver(t *testing.T) {
	o := NewObject(P("a", Int(1)))
	assert.Same(t, o, o.Without("zzz"))
	assert.False(t, o.Without("a").Has("a"))
}

func TestNilObjectAndArrayAreEmpty(t *testing.T) {
	var o *Object
	var a *Array

	assert.Equal(t, 0, o.Len())
	assert.Nil(t, o.Lookup("x"))
	assert.Equal(t, 0, a.Len())
	assert.Nil(t, a.At(0))
}

func TestArray_CopiesInput(t *testing.T) {
	in := []Value{Int(1), Int(2)}
	a := NewArray(in...)
	in[0] = Int(99)

	assert.Equal(t, Int(1), a.At(0))
	assert.Nil(t, a.At(5))
	assert.Nil(t, a.At(-1))
}

func TestSame(t *testing.T) {
	o1 := NewObject(P("a", Int(1)))
	o2 := NewObject(P("a", Int(1)))

	testCases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal ints", Int(1), Int(1), true},
		{"different ints", Int(1), Int(2), false},
		{"int vs float", Int(1), Float(1), false},
		{"same string", String("x"), String("x"), true},
		{"same object", o1, o1, true},
		{"equal but distinct objects", o1, o2, false},
		{"absent vs absent", nil, nil, true},
		{"absent vs null", nil, Null{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Same(tc.a, tc.b))
		})
	}
}

func TestEqual_DeepIgnoresKeyOrder(t *testing.T) {
	a := MustDecode(`{"x":1,"y":[1,{"z":true}]}`)
	b := MustDecode(`{"y":[1,{"z":true}],"x":1}`)
	c := MustDecode(`{"y":[1,{"z":false}],"x":1}`)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, MustDecode(`[1]`)))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, Int(20), Number(20))
	assert.Equal(t, Float(0.5), Number(0.5))
}

func TestAsFloat(t *testing.T) {
	f, ok := AsFloat(Int(3))
	require.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = AsFloat(String("3"))
	assert.False(t, ok)
}
