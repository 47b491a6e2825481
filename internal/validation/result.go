package validation

import (
	"iter"
	"slices"

	"github.com/roach88/derive/internal/doc"
)

// Result is a sealed interface over Success and *Failure.
type Result interface {
	result() // Sealed - only these types implement it
}

// Success is the result of a passing validator.
type Success struct{}

func (Success) result() {}

// Failure holds the errors of a target and the failures of its fields.
// Array elements appear as fields keyed by identity token, or by index when
// untagged.
type Failure struct {
	Errors []string
	keys   []string
	fields map[string]*Failure
}

func (*Failure) result() {}

// Fail builds a Failure carrying errs.
func Fail(errs ...string) *Failure {
	return &Failure{Errors: append([]string(nil), errs...)}
}

// Field returns the failure of key, or nil when key passed.
func (f *Failure) Field(key string) *Failure {
	if f == nil {
		return nil
	}
	return f.fields[key]
}

// Fields iterates failing fields in the order they were validated.
func (f *Failure) Fields() iter.Seq2[string, *Failure] {
	return func(yield func(string, *Failure) bool) {
		if f == nil {
			return
		}
		for _, k := range f.keys {
			if !yield(k, f.fields[k]) {
				return
			}
		}
	}
}

func (f *Failure) setField(key string, sub *Failure) {
	if f.fields == nil {
		f.fields = make(map[string]*Failure)
	}
	if existing, ok := f.fields[key]; ok {
		f.fields[key] = merge(existing, sub)
		return
	}
	f.keys = append(f.keys, key)
	f.fields[key] = sub
}

// merge combines two failures of the same target.
func merge(a, b *Failure) *Failure {
	out := &Failure{Errors: slices.Concat(a.Errors, b.Errors)}
	for k, sub := range a.Fields() {
		out.setField(k, sub)
	}
	for k, sub := range b.Fields() {
		out.setField(k, sub)
	}
	return out
}

// IsValid reports whether r is a success.
func IsValid(r Result) bool {
	_, ok := r.(Success)
	return ok || r == nil
}

// GetErrors returns the errors attached to r itself, not to its fields.
func GetErrors(r Result) []string {
	f, ok := r.(*Failure)
	if !ok || f == nil {
		return nil
	}
	return append([]string(nil), f.Errors...)
}

// GetInner returns the result found at path below r. Paths that passed, or
// that were never validated, yield Success.
func GetInner(r Result, path ...string) Result {
	f, ok := r.(*Failure)
	if !ok {
		return Success{}
	}
	for _, seg := range path {
		f = f.Field(seg)
		if f == nil {
			return Success{}
		}
	}
	return f
}

// ToValue renders r as a document: Success as true, a Failure as a record
// with "errors" and, when present, "fields".
func ToValue(r Result) doc.Value {
	f, ok := r.(*Failure)
	if !ok || f == nil {
		return doc.Bool(true)
	}
	errs := make([]doc.Value, len(f.Errors))
	for i, e := range f.Errors {
		errs[i] = doc.String(e)
	}
	pairs := []doc.Pair{doc.P("errors", doc.NewArray(errs...))}
	if len(f.keys) > 0 {
		fields := make([]doc.Pair, 0, len(f.keys))
		for k, sub := range f.Fields() {
			fields = append(fields, doc.P(k, ToValue(sub)))
		}
		pairs = append(pairs, doc.P("fields", doc.NewObject(fields...)))
	}
	return doc.NewObject(pairs...)
}

// MarshalJSON implements json.Marshaler.
func (f *Failure) MarshalJSON() ([]byte, error) {
	return doc.Marshal(ToValue(f))
}
