package validation

import (
	"strconv"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/identity"
	"github.com/roach88/derive/internal/rules"
)

// Validator is a sealed interface over LeafValidator, WhenValidator,
// ShapeValidator, ItemsValidator, and ConcatValidator.
type Validator interface {
	validator()
}

// Input is what a leaf validator sees.
type Input struct {
	// Doc is the ambient document: the record being shaped, or the array
	// element inside Items.
	Doc doc.Value
	// Prev is the ambient previous document; nil when there is none.
	Prev doc.Value
	// Value is the value being validated.
	Value doc.Value
}

// LeafFunc checks one value. Returning a non-nil error aborts validation.
type LeafFunc func(in Input) (Result, error)

// LeafValidator validates its target directly.
type LeafValidator struct {
	Fn LeafFunc
}

// WhenValidator runs Validator only when Pred holds.
type WhenValidator struct {
	Pred      rules.Predicate
	Validator Validator
}

// Field binds a validator to a record key.
type Field struct {
	Key       string
	Validator Validator
}

// ShapeValidator validates fields of a record.
type ShapeValidator struct {
	Fields []Field
}

// ItemsValidator validates every element of an array with the element as
// its ambient document.
type ItemsValidator struct {
	Validator Validator
}

// ConcatValidator runs every validator against the same target and merges
// their failures.
type ConcatValidator struct {
	Validators []Validator
}

func (LeafValidator) validator()   {}
func (WhenValidator) validator()   {}
func (ShapeValidator) validator()  {}
func (ItemsValidator) validator()  {}
func (ConcatValidator) validator() {}

// Leaf wraps a raw leaf function.
func Leaf(fn LeafFunc) Validator {
	return LeafValidator{Fn: fn}
}

// When gates v on p. When p is false the target passes.
func When(p rules.Predicate, v Validator) Validator {
	return WhenValidator{Pred: p, Validator: v}
}

// F is a shorthand for Field.
func F(key string, v Validator) Field {
	return Field{Key: key, Validator: v}
}

// Shape builds a field-wise validator.
func Shape(fields ...Field) Validator {
	return ShapeValidator{Fields: append([]Field(nil), fields...)}
}

// Items validates each array element.
func Items(v Validator) Validator {
	return ItemsValidator{Validator: v}
}

// Concat runs vs in order against the same target.
func Concat(vs ...Validator) Validator {
	return ConcatValidator{Validators: append([]Validator(nil), vs...)}
}

// Validate checks d with v. Every When predicate sees no previous document,
// so change predicates hold and every gated validator runs.
func Validate(v Validator, d doc.Value) (Result, error) {
	return ValidateChanged(v, d, nil)
}

// ValidateChanged checks d with v, running When-gated validators only where
// their predicate holds against prev.
func ValidateChanged(v Validator, d, prev doc.Value) (Result, error) {
	f, err := check(v, &frame{doc: d, prev: prev, value: d, prevValue: prev})
	if err != nil {
		return nil, err
	}
	if f == nil {
		return Success{}, nil
	}
	return f, nil
}

type frame struct {
	doc, prev        doc.Value
	value, prevValue doc.Value
	path             []string
}

func (f *frame) child(seg string, value, prevValue doc.Value) *frame {
	return &frame{
		doc:       f.doc,
		prev:      f.prev,
		value:     value,
		prevValue: prevValue,
		path:      append(append([]string(nil), f.path...), seg),
	}
}

// check returns nil when the target passed.
func check(v Validator, f *frame) (*Failure, error) {
	switch val := v.(type) {
	case LeafValidator:
		r, err := val.Fn(Input{Doc: f.doc, Prev: f.prev, Value: f.value})
		if err != nil {
			return nil, &Error{Code: ErrCodeValidatorFailed, Path: f.path, Err: err}
		}
		failure, _ := r.(*Failure)
		return failure, nil

	case WhenValidator:
		ok, err := rules.Evaluate(val.Pred, f.doc, f.prev)
		if err != nil {
			return nil, &Error{Code: ErrCodePredicateFailed, Path: f.path, Err: err}
		}
		if !ok {
			return nil, nil
		}
		return check(val.Validator, f)

	case ShapeValidator:
		return checkShape(val, f)

	case ItemsValidator:
		return checkItems(val, f)

	case ConcatValidator:
		var out *Failure
		for _, sub := range val.Validators {
			failure, err := check(sub, f)
			if err != nil {
				return nil, err
			}
			switch {
			case failure == nil:
			case out == nil:
				out = failure
			default:
				out = merge(out, failure)
			}
		}
		return out, nil

	default:
		return nil, &Error{Code: ErrCodeUnknownValidator, Message: "unknown validator type", Path: f.path}
	}
}

func checkShape(v ShapeValidator, f *frame) (*Failure, error) {
	var obj *doc.Object
	switch t := f.value.(type) {
	case *doc.Object:
		obj = t
	case nil, doc.Null:
		// Absent records validate their fields as absent.
	default:
		return nil, &Error{
			Code:    ErrCodeNotObject,
			Message: "shape applied to " + doc.TypeName(f.value),
			Path:    f.path,
		}
	}
	prevObj, _ := f.prevValue.(*doc.Object)

	var out *Failure
	for _, field := range v.Fields {
		failure, err := check(field.Validator, f.child(field.Key, obj.Lookup(field.Key), prevObj.Lookup(field.Key)))
		if err != nil {
			return nil, err
		}
		if failure == nil {
			continue
		}
		if out == nil {
			out = &Failure{}
		}
		out.setField(field.Key, failure)
	}
	return out, nil
}

func checkItems(v ItemsValidator, f *frame) (*Failure, error) {
	var arr *doc.Array
	switch t := f.value.(type) {
	case *doc.Array:
		arr = t
	case nil, doc.Null:
		return nil, nil
	default:
		return nil, &Error{
			Code:    ErrCodeNotArray,
			Message: "items applied to " + doc.TypeName(f.value),
			Path:    f.path,
		}
	}
	prevArr, _ := f.prevValue.(*doc.Array)
	ix := identity.NewIndex(prevArr)

	var out *Failure
	for i, elem := range arr.All() {
		var prevElem doc.Value
		if j, ok := ix.Match(elem); ok {
			prevElem = prevArr.At(j)
		}
		seg, ok := identity.Of(elem)
		if !ok {
			seg = strconv.Itoa(i)
		}
		child := f.child(seg, elem, prevElem)
		child.doc, child.prev = elem, prevElem

		failure, err := check(v.Validator, child)
		if err != nil {
			return nil, err
		}
		if failure == nil {
			continue
		}
		if out == nil {
			out = &Failure{}
		}
		out.setField(seg, failure)
	}
	return out, nil
}
