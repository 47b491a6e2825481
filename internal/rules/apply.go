package rules

import (
	"strconv"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/identity"
)

// Apply interprets r against the current and previous documents and
// returns the next document. prev may be nil when there is no previous
// document, in which case every change predicate holds.
//
// Any subtree for which no rule produced a different value is returned by
// reference from cur. Array order always follows cur.
func Apply(r Rule, cur, prev doc.Value) (doc.Value, error) {
	out, _, err := eval(r, &frame{
		doc:       cur,
		prev:      prev,
		value:     cur,
		prevValue: prev,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// frame is the evaluation context of one rule.
type frame struct {
	doc, prev        doc.Value // ambient documents read by predicates and leaves
	value, prevValue doc.Value // target being replaced, and its previous version
	path             *pathNode
	sink             *logSink
}

// child derives the frame for the target at seg, keeping the ambient
// documents.
func (f *frame) child(seg string, value, prevValue doc.Value) *frame {
	return &frame{
		doc:       f.doc,
		prev:      f.prev,
		value:     value,
		prevValue: prevValue,
		path:      &pathNode{parent: f.path, seg: seg},
		sink:      f.sink,
	}
}

// narrowed returns a frame whose ambient documents are the target itself.
func (f *frame) narrowed() *frame {
	return &frame{
		doc:       f.value,
		prev:      f.prevValue,
		value:     f.value,
		prevValue: f.prevValue,
		path:      f.path,
		sink:      f.sink,
	}
}

type pathNode struct {
	parent *pathNode
	seg    string
}

func (p *pathNode) segments() []string {
	n := 0
	for q := p; q != nil; q = q.parent {
		n++
	}
	out := make([]string, n)
	for q := p; q != nil; q = q.parent {
		n--
		out[n] = q.seg
	}
	return out
}

// eval returns the rule's result and whether it differs from f.value.
func eval(r Rule, f *frame) (doc.Value, bool, error) {
	switch rule := r.(type) {
	case LeafRule:
		out, err := rule.Fn(Input{Doc: f.doc, Prev: f.prev, Value: f.value})
		if err != nil {
			return nil, false, wrapError(ErrCodeRuleFailed, f.path.segments(), err)
		}
		return out, !doc.Same(out, f.value), nil

	case WhenRule:
		ok, err := Evaluate(rule.Pred, f.doc, f.prev)
		if err != nil {
			return nil, false, wrapError(ErrCodePredicateFailed, f.path.segments(), err)
		}
		if !ok {
			return f.value, false, nil
		}
		return eval(rule.Rule, f)

	case ShapeRule:
		return evalShape(rule, f)

	case ScopeRule:
		return eval(rule.Rule, f.narrowed())

	case ItemsRule:
		return evalItems(rule, f.narrowed())

	case ChainRule:
		return evalChain(rule, f)

	case LogRule:
		sink := &logSink{logger: rule.Logger, parent: f.sink}
		inner := *f
		inner.sink = sink
		out, changed, err := eval(rule.Rule, &inner)
		if err != nil {
			return nil, false, err
		}
		if changed && sink.count == 0 {
			sink.emit(Change{Path: f.path.segments(), Previous: f.value, Next: out})
		}
		return out, changed, nil

	default:
		return nil, false, &RuleError{
			Code:    ErrCodeUnknownRule,
			Message: "unknown rule type",
			Path:    f.path.segments(),
		}
	}
}

// evalShape rebuilds the target record. Field rules see the ambient
// documents of f; only the record being rebuilt is the target.
func evalShape(rule ShapeRule, f *frame) (doc.Value, bool, error) {
	var obj *doc.Object
	switch v := f.value.(type) {
	case *doc.Object:
		obj = v
	case nil:
		// Absent target: fields are computed onto an empty record.
	default:
		return nil, false, &RuleError{
			Code:    ErrCodeNotObject,
			Message: "shape applied to " + doc.TypeName(f.value),
			Path:    f.path.segments(),
		}
	}
	prevObj, _ := f.prevValue.(*doc.Object)

	var changes []doc.Pair
	for _, field := range rule.Fields {
		cur := obj.Lookup(field.Key)
		child := f.child(field.Key, cur, prevObj.Lookup(field.Key))
		logged := f.sink.logged()

		out, changed, err := eval(field.Rule, child)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			continue
		}
		changes = append(changes, doc.P(field.Key, out))
		// Only the innermost changed field is reported.
		if f.sink != nil && f.sink.logged() == logged {
			f.sink.emit(Change{Path: child.path.segments(), Previous: cur, Next: out})
		}
	}

	if len(changes) == 0 {
		return f.value, false, nil
	}
	if obj == nil {
		obj = doc.NewObject()
	}
	return obj.WithAll(changes...), true, nil
}

// evalItems applies the element rule to each element of the target array,
// pairing it with the previous element that carries the same identity.
// Elements with no counterpart are evaluated with no previous document.
func evalItems(rule ItemsRule, f *frame) (doc.Value, bool, error) {
	var arr *doc.Array
	switch v := f.value.(type) {
	case *doc.Array:
		arr = v
	case nil:
		return nil, false, nil
	default:
		return nil, false, &RuleError{
			Code:    ErrCodeNotArray,
			Message: "items applied to " + doc.TypeName(f.value),
			Path:    f.path.segments(),
		}
	}
	if dups := identity.Duplicates(arr); len(dups) > 0 {
		return nil, false, &RuleError{
			Code:    ErrCodeDuplicateIdentity,
			Message: "identity " + strconv.Quote(dups[0]) + " appears more than once",
			Path:    f.path.segments(),
		}
	}

	prevArr, _ := f.prevValue.(*doc.Array)
	ix := identity.NewIndex(prevArr)

	var elems []doc.Value
	for i, elem := range arr.All() {
		var prevElem doc.Value
		if j, ok := ix.Match(elem); ok {
			prevElem = prevArr.At(j)
		}
		seg, ok := identity.Of(elem)
		if !ok {
			seg = strconv.Itoa(i)
		}
		child := f.child(seg, elem, prevElem).narrowed()

		out, changed, err := eval(rule.Rule, child)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			continue
		}
		if elems == nil {
			elems = arr.Values()
		}
		elems[i] = out
	}

	if elems == nil {
		return arr, false, nil
	}
	return doc.NewArray(elems...), true, nil
}

// evalChain threads the target through each stage. Stage 0 reads the
// ambient documents; later stages read the candidate value.
func evalChain(rule ChainRule, f *frame) (doc.Value, bool, error) {
	cur := f.value
	for i, stage := range rule.Rules {
		sf := f
		if i > 0 {
			sf = &frame{
				doc:       cur,
				prev:      f.prevValue,
				value:     cur,
				prevValue: f.prevValue,
				path:      f.path,
				sink:      f.sink,
			}
		}
		out, _, err := eval(stage, sf)
		if err != nil {
			return nil, false, err
		}
		cur = out
	}
	return cur, !doc.Same(cur, f.value), nil
}

// logSink fans a change out to the logger of every enclosing LogTo.
type logSink struct {
	logger Logger
	parent *logSink
	count  int
}

func (s *logSink) logged() int {
	if s == nil {
		return 0
	}
	return s.count
}

func (s *logSink) emit(c Change) {
	for q := s; q != nil; q = q.parent {
		q.count++
		if q.logger != nil {
			q.logger.Log(c)
		}
	}
}
