package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"github.com/dop251/goja"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/rules"
)

// ScriptTimeout bounds a single script evaluation.
var ScriptTimeout = time.Second

// script compiles a JavaScript expression into a leaf rule. The expression
// sees doc (the ambient document), prev (its previous version, or
// undefined), and value (the current target value, or undefined).
// An undefined result removes the target.
func script(field string, v cue.Value) (rules.Rule, error) {
	src, err := v.String()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "script must be a string", Pos: v.Pos()}
	}
	prog, err := goja.Compile(field, src, true)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return rules.Func(func(in rules.Input) (doc.Value, error) {
		return runScript(prog, in)
	}), nil
}

func runScript(prog *goja.Program, in rules.Input) (out doc.Value, err error) {
	vm := goja.New()
	bind(vm, "doc", in.Doc)
	bind(vm, "prev", in.Prev)
	bind(vm, "value", in.Value)

	timer := time.AfterFunc(ScriptTimeout, func() {
		vm.Interrupt("script timed out")
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panicked: %v", r)
		}
	}()
	result, err := vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(result) {
		return nil, nil
	}
	val, err := doc.FromNative(result.Export())
	if err != nil {
		return nil, err
	}
	return normalizeNumbers(val), nil
}

func bind(vm *goja.Runtime, name string, v doc.Value) {
	if v == nil {
		vm.Set(name, goja.Undefined())
		return
	}
	vm.Set(name, doc.ToNative(v))
}

// normalizeNumbers turns integral floats into Int. JavaScript has a single
// number type, so 20 and 20.0 are the same value there.
func normalizeNumbers(v doc.Value) doc.Value {
	switch n := v.(type) {
	case doc.Float:
		return doc.Number(float64(n))
	case *doc.Array:
		elems := n.Values()
		for i, e := range elems {
			elems[i] = normalizeNumbers(e)
		}
		return doc.NewArray(elems...)
	case *doc.Object:
		pairs := make([]doc.Pair, 0, n.Len())
		for k, e := range n.All() {
			pairs = append(pairs, doc.P(k, normalizeNumbers(e)))
		}
		return doc.NewObject(pairs...)
	default:
		return v
	}
}
