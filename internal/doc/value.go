package doc

import (
	"fmt"
	"iter"
	"math"
)

// Value is a sealed interface over the document node types.
// Only Null, String, Int, Float, Bool, *Array, and *Object implement it.
type Value interface {
	docValue() // Sealed - only these types implement it
}

// Null represents an explicit JSON null.
type Null struct{}

func (Null) docValue() {}

// String is a string scalar.
type String string

func (String) docValue() {}

// Int is an integral number.
type Int int64

func (Int) docValue() {}

// Float is a non-integral (or explicitly floating) number.
type Float float64

func (Float) docValue() {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) docValue() {}

// Pair is a key/value pair used to build records in a fixed order.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewObject(P("name", String("cart")), P("count", Int(5)))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// Object is an immutable string-keyed record.
// Iteration follows insertion order; equality ignores it.
type Object struct {
	keys []string
	vals map[string]Value
}

func (*Object) docValue() {}

// NewObject builds a record from pairs. A repeated key keeps its first
// position and its last value. Pairs with a nil Value are skipped.
func NewObject(pairs ...Pair) *Object {
	o := &Object{
		keys: make([]string, 0, len(pairs)),
		vals: make(map[string]Value, len(pairs)),
	}
	for _, p := range pairs {
		if p.Value == nil {
			continue
		}
		if _, exists := o.vals[p.Key]; !exists {
			o.keys = append(o.keys, p.Key)
		}
		o.vals[p.Key] = p.Value
	}
	return o
}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Get returns the value for key and whether it exists.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Lookup returns the value for key, or nil when the key is absent.
func (o *Object) Lookup(key string) Value {
	v, _ := o.Get(key)
	return v
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// All iterates fields in insertion order.
func (o *Object) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if o == nil {
			return
		}
		for _, k := range o.keys {
			if !yield(k, o.vals[k]) {
				return
			}
		}
	}
}

// With returns a shallow copy with key set to v (appended if new).
// A nil v removes the key. Untouched children keep their references.
func (o *Object) With(key string, v Value) *Object {
	return o.WithAll(P(key, v))
}

// Without returns a shallow copy without key, or o itself if key is absent.
func (o *Object) Without(key string) *Object {
	if !o.Has(key) {
		return o
	}
	return o.WithAll(P(key, nil))
}

// WithAll returns a shallow copy with every pair applied in order.
// Pairs with a nil Value remove their key. New keys are appended.
func (o *Object) WithAll(pairs ...Pair) *Object {
	n := &Object{
		keys: make([]string, 0, o.Len()+len(pairs)),
		vals: make(map[string]Value, o.Len()+len(pairs)),
	}
	if o != nil {
		n.keys = append(n.keys, o.keys...)
		for k, v := range o.vals {
			n.vals[k] = v
		}
	}
	removed := false
	for _, p := range pairs {
		_, exists := n.vals[p.Key]
		switch {
		case p.Value == nil:
			if exists {
				delete(n.vals, p.Key)
				removed = true
			}
		case exists:
			n.vals[p.Key] = p.Value
		default:
			n.keys = append(n.keys, p.Key)
			n.vals[p.Key] = p.Value
		}
	}
	if removed {
		kept := n.keys[:0]
		for _, k := range n.keys {
			if _, ok := n.vals[k]; ok {
				kept = append(kept, k)
			}
		}
		n.keys = kept
	}
	return n
}

// Array is an immutable ordered sequence.
type Array struct {
	elems []Value
}

func (*Array) docValue() {}

// NewArray builds a sequence. The slice is copied.
func NewArray(vals ...Value) *Array {
	elems := make([]Value, len(vals))
	copy(elems, vals)
	return &Array{elems: elems}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.elems)
}

// At returns the element at i, or nil when i is out of range.
func (a *Array) At(i int) Value {
	if a == nil || i < 0 || i >= len(a.elems) {
		return nil
	}
	return a.elems[i]
}

// Values returns a copy of the elements.
func (a *Array) Values() []Value {
	if a == nil {
		return nil
	}
	out := make([]Value, len(a.elems))
	copy(out, a.elems)
	return out
}

// All iterates elements in order.
func (a *Array) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		if a == nil {
			return
		}
		for i, v := range a.elems {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Same reports reference identity for records and sequences and value
// equality for scalars. Two absent values are the same.
func Same(a, b Value) bool {
	return a == b
}

// Equal reports deep structural equality. Record key order is ignored.
// Int and Float are distinct types and never equal to each other.
func Equal(a, b Value) bool {
	if a == b {
		return true
	}
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for k, v := range av.All() {
			w, exists := bv.Get(k)
			if !exists || !Equal(v, w) {
				return false
			}
		}
		return true
	case *Array:
		bv, ok := b.(*Array)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, v := range av.All() {
			if !Equal(v, bv.At(i)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AsFloat returns the numeric value of an Int or Float.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// Number converts f to Int when it is integral and in range, Float otherwise.
func Number(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Int(int64(f))
	}
	return Float(f)
}

// TypeName names the node type of v for diagnostics.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "absent"
	case Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case *Array:
		return "array"
	case *Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
