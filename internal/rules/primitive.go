package rules

import (
	"fmt"

	"github.com/roach88/derive/internal/doc"
)

// Constant always yields v.
func Constant(v doc.Value) Rule {
	return LeafRule{Fn: func(Input) (doc.Value, error) {
		return v, nil
	}}
}

// Computed derives a value from the ambient document.
func Computed(fn func(d doc.Value) (doc.Value, error)) Rule {
	return LeafRule{Fn: func(in Input) (doc.Value, error) {
		return fn(in.Doc)
	}}
}

// ComputedWithPrevious derives a value from the ambient document and its
// previous version. prev is nil when there is none.
func ComputedWithPrevious(fn func(d, prev doc.Value) (doc.Value, error)) Rule {
	return LeafRule{Fn: func(in Input) (doc.Value, error) {
		return fn(in.Doc, in.Prev)
	}}
}

// Func wraps a raw leaf function.
func Func(fn LeafFunc) Rule {
	return LeafRule{Fn: fn}
}

// MaximumValue caps the target value at n.
func MaximumValue(n float64) Rule {
	limit := doc.Number(n)
	return clamp(func(doc.Value) (doc.Value, error) { return limit, nil }, true)
}

// MinimumValue raises the target value to at least n.
func MinimumValue(n float64) Rule {
	limit := doc.Number(n)
	return clamp(func(doc.Value) (doc.Value, error) { return limit, nil }, false)
}

// MaximumValueOf caps the target value at a limit read from the ambient
// document. An absent limit leaves the value alone.
func MaximumValueOf(sel Selector) Rule {
	return clamp(sel, true)
}

// MinimumValueOf raises the target value to a limit read from the ambient
// document. An absent limit leaves the value alone.
func MinimumValueOf(sel Selector) Rule {
	return clamp(sel, false)
}

// clamp returns the target itself when it is within the limit, so an
// in-range value never reads as changed.
func clamp(limitOf Selector, upper bool) Rule {
	return LeafRule{Fn: func(in Input) (doc.Value, error) {
		if in.Value == nil {
			return nil, nil
		}
		limit, err := limitOf(in.Doc)
		if err != nil {
			return nil, err
		}
		if limit == nil {
			return in.Value, nil
		}
		cur, ok := doc.AsFloat(in.Value)
		if !ok {
			return nil, notNumber("value", in.Value)
		}
		lim, ok := doc.AsFloat(limit)
		if !ok {
			return nil, notNumber("limit", limit)
		}
		if (upper && cur > lim) || (!upper && cur < lim) {
			return limit, nil
		}
		return in.Value, nil
	}}
}

func notNumber(what string, v doc.Value) error {
	return &RuleError{
		Code:    ErrCodeNotNumber,
		Message: fmt.Sprintf("%s is %s, not a number", what, doc.TypeName(v)),
	}
}
