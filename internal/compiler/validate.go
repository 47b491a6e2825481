package compiler

import (
	"fmt"
	"regexp"

	"cuelang.org/go/cue"
)

// Validation codes (E100-E199). These flag rule specs that compile but are
// almost certainly not what the author meant.
const (
	ErrEmptyShape     = "E101" // shape with no fields
	ErrEmptyChain     = "E102" // chain with no stages
	ErrEmptyCombiner  = "E103" // any/all with no predicates
	ErrConstantScript = "E104" // script that reads neither doc, prev, nor value
	ErrInvertedBounds = "E105" // min above max in one chain
)

// ValidationError represents a suspicious construct in a rule spec.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// scriptInputs matches a read of any script binding.
var scriptInputs = regexp.MustCompile(`\b(doc|prev|value)\b`)

// Validate checks a rule spec that compiles and reports every suspicious
// construct found. It does not fail fast.
func Validate(v cue.Value) []ValidationError {
	root := v.LookupPath(cue.ParsePath(RulesField))
	if !root.Exists() {
		return []ValidationError{{Field: RulesField, Message: "rules is required", Code: "E100"}}
	}
	var errs []ValidationError
	validateNode(RulesField, root, &errs)
	return errs
}

func validateNode(field string, v cue.Value, errs *[]ValidationError) {
	if v.IncompleteKind() != cue.StructKind {
		return
	}
	iter, err := v.Fields()
	if err != nil {
		return
	}
	for iter.Next() {
		body := iter.Value()
		at := field + "." + iter.Label()
		switch iter.Label() {
		case "shape":
			fields, err := body.Fields()
			if err != nil {
				continue
			}
			n := 0
			for fields.Next() {
				n++
				validateNode(at+"."+fields.Label(), fields.Value(), errs)
			}
			if n == 0 {
				*errs = append(*errs, issue(at, body, ErrEmptyShape, "shape has no fields"))
			}
		case "chain":
			validateChain(at, body, errs)
		case "scope", "items", "then":
			validateNode(at, body, errs)
		case "when":
			validatePredicate(at, body, errs)
		case "script":
			if s, err := body.String(); err == nil && !scriptInputs.MatchString(s) {
				*errs = append(*errs, issue(at, body, ErrConstantScript, "script reads no input; use const"))
			}
		}
	}
}

func validateChain(field string, v cue.Value, errs *[]ValidationError) {
	list, err := v.List()
	if err != nil {
		return
	}
	var lo, hi *float64
	n := 0
	for ; list.Next(); n++ {
		stage := list.Value()
		validateNode(fmt.Sprintf("%s[%d]", field, n), stage, errs)
		if f, err := stage.LookupPath(cue.ParsePath("min")).Float64(); err == nil {
			lo = &f
		}
		if f, err := stage.LookupPath(cue.ParsePath("max")).Float64(); err == nil {
			hi = &f
		}
	}
	if n == 0 {
		*errs = append(*errs, issue(field, v, ErrEmptyChain, "chain has no stages"))
	}
	if lo != nil && hi != nil && *lo > *hi {
		*errs = append(*errs, issue(field, v, ErrInvertedBounds,
			fmt.Sprintf("min %g is above max %g", *lo, *hi)))
	}
}

func validatePredicate(field string, v cue.Value, errs *[]ValidationError) {
	iter, err := v.Fields()
	if err != nil {
		return
	}
	for iter.Next() {
		body := iter.Value()
		at := field + "." + iter.Label()
		switch iter.Label() {
		case "any", "all":
			list, err := body.List()
			if err != nil {
				continue
			}
			n := 0
			for ; list.Next(); n++ {
				validatePredicate(fmt.Sprintf("%s[%d]", at, n), list.Value(), errs)
			}
			if n == 0 {
				*errs = append(*errs, issue(at, body, ErrEmptyCombiner, iter.Label()+" has no predicates"))
			}
		case "not":
			validatePredicate(at, body, errs)
		}
	}
}

func issue(field string, v cue.Value, code, msg string) ValidationError {
	e := ValidationError{Field: field, Message: msg, Code: code}
	if pos := v.Pos(); pos.IsValid() {
		e.Line = pos.Line()
	}
	return e
}
