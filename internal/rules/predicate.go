package rules

import "github.com/roach88/derive/internal/doc"

// Selector reads a sub-value of a document.
type Selector func(d doc.Value) (doc.Value, error)

// MultiSelector reads several sub-values of a document.
type MultiSelector func(d doc.Value) ([]doc.Value, error)

// Path selects by record keys and array indexes. See doc.Get.
func Path(keys ...string) Selector {
	path := make([]string, len(keys))
	copy(path, keys)
	return func(d doc.Value) (doc.Value, error) {
		return doc.Get(d, path...)
	}
}

// Fields selects the named top-level fields of a record.
func Fields(keys ...string) MultiSelector {
	sels := make([]Selector, len(keys))
	for i, k := range keys {
		sels[i] = Path(k)
	}
	return Select(sels...)
}

// Select combines selectors into a MultiSelector.
func Select(sels ...Selector) MultiSelector {
	return func(d doc.Value) ([]doc.Value, error) {
		out := make([]doc.Value, len(sels))
		for i, sel := range sels {
			v, err := sel(d)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
}

// Predicate is a sealed interface over the predicate variants:
// ChangedPredicate, PropertiesChangedPredicate, AnyPredicate, AllPredicate,
// NotPredicate, and PredicateFunc.
type Predicate interface {
	predicate()
}

// ChangedPredicate holds when the selected value is not doc.Same in the
// current and previous documents.
type ChangedPredicate struct {
	Select Selector
}

// PropertiesChangedPredicate holds when any selected value differs.
type PropertiesChangedPredicate struct {
	Select MultiSelector
}

// AnyPredicate holds when at least one of Preds holds.
type AnyPredicate struct {
	Preds []Predicate
}

// AllPredicate holds when every one of Preds holds.
type AllPredicate struct {
	Preds []Predicate
}

// NotPredicate negates Pred.
type NotPredicate struct {
	Pred Predicate
}

// PredicateFunc is a raw predicate over the ambient documents. prev is nil
// when there is no previous document.
type PredicateFunc func(d, prev doc.Value) (bool, error)

func (ChangedPredicate) predicate()           {}
func (PropertiesChangedPredicate) predicate() {}
func (AnyPredicate) predicate()               {}
func (AllPredicate) predicate()               {}
func (NotPredicate) predicate()               {}
func (PredicateFunc) predicate()              {}

// PropertyChanged holds when sel yields a different value than it did on
// the previous document. Records and arrays compare by reference, so a
// composite only reads as changed when it was replaced.
func PropertyChanged(sel Selector) Predicate {
	return ChangedPredicate{Select: sel}
}

// PropertiesChanged holds when any value yielded by sel differs pairwise.
func PropertiesChanged(sel MultiSelector) Predicate {
	return PropertiesChangedPredicate{Select: sel}
}

// Any short-circuits on the first predicate that holds.
func Any(ps ...Predicate) Predicate {
	return AnyPredicate{Preds: append([]Predicate(nil), ps...)}
}

// All short-circuits on the first predicate that fails.
func All(ps ...Predicate) Predicate {
	return AllPredicate{Preds: append([]Predicate(nil), ps...)}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return NotPredicate{Pred: p}
}

// Evaluate tests p against the ambient documents.
//
// With no previous document (prev == nil) every change predicate holds
// without calling its selector: there is nothing to compare against, so the
// value counts as changed.
func Evaluate(p Predicate, d, prev doc.Value) (bool, error) {
	switch pred := p.(type) {
	case ChangedPredicate:
		if prev == nil {
			return true, nil
		}
		cur, err := pred.Select(d)
		if err != nil {
			return false, err
		}
		old, err := pred.Select(prev)
		if err != nil {
			return false, err
		}
		return !doc.Same(cur, old), nil

	case PropertiesChangedPredicate:
		if prev == nil {
			return true, nil
		}
		cur, err := pred.Select(d)
		if err != nil {
			return false, err
		}
		old, err := pred.Select(prev)
		if err != nil {
			return false, err
		}
		if len(cur) != len(old) {
			return true, nil
		}
		for i := range cur {
			if !doc.Same(cur[i], old[i]) {
				return true, nil
			}
		}
		return false, nil

	case AnyPredicate:
		for _, sub := range pred.Preds {
			ok, err := Evaluate(sub, d, prev)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil

	case AllPredicate:
		for _, sub := range pred.Preds {
			ok, err := Evaluate(sub, d, prev)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case NotPredicate:
		ok, err := Evaluate(pred.Pred, d, prev)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case PredicateFunc:
		return pred(d, prev)

	default:
		return false, &RuleError{Code: ErrCodeUnknownRule, Message: "unknown predicate type"}
	}
}
