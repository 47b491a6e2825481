package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/sanity-io/litter"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/tracking"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Step, event.Kind)
			for _, c := range event.Changes {
				fmt.Fprintf(&buf, " %s", c.Path)
			}
			if event.Error != "" {
				fmt.Fprintf(&buf, " error=%q", event.Error)
			}
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "\nFinal model:\n%s\n", litter.Sdump(plain(e.Trace[len(e.Trace)-1].Model)))
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the finished run.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, dirty tracking.Info) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, dirty); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, dirty tracking.Info) error {
	path := doc.ParsePath(a.Path)
	switch a.Type {
	case AssertDirty, AssertClean:
		want := a.Type == AssertDirty
		if tracking.IsDirty(dirty, path...) != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%q to be %s", a.Path, a.Type),
				Actual:   fmt.Sprintf("dirty tree %s", renderValue(tracking.ToValue(dirty))),
				Trace:    result.Trace,
			}
		}
	case AssertLogCount:
		if got := result.LogCount(); got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d logged changes", a.Count),
				Actual:   fmt.Sprintf("%d logged changes", got),
				Trace:    result.Trace,
			}
		}
	case AssertModel:
		got, err := doc.Get(result.Last().Model, path...)
		if err != nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("value at %q", a.Path),
				Actual:   err.Error(),
				Trace:    result.Trace,
			}
		}
		if diff := matchSubset(a.Expect.Value, got); diff != "" {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("value at %q to match", a.Path),
				Actual:   "mismatch (-want +got):\n" + diff,
				Trace:    result.Trace,
			}
		}
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

// matchSubset compares want against the part of got that want names.
// Records match when every key of want matches; got may carry more keys.
// Arrays match element-wise and must have the same length. Numbers compare
// by value, so 10 matches 10.0. Returns "" on a match and a diff otherwise.
func matchSubset(want, got doc.Value) string {
	return cmp.Diff(plain(want), plain(project(got, want)))
}

// project trims got down to the keys want names.
func project(got, want doc.Value) doc.Value {
	switch w := want.(type) {
	case *doc.Object:
		g, ok := got.(*doc.Object)
		if !ok {
			return got
		}
		pairs := make([]doc.Pair, 0, w.Len())
		for k, sub := range w.All() {
			if v, exists := g.Get(k); exists {
				pairs = append(pairs, doc.P(k, project(v, sub)))
			}
		}
		return doc.NewObject(pairs...)
	case *doc.Array:
		g, ok := got.(*doc.Array)
		if !ok {
			return got
		}
		elems := g.Values()
		for i := range elems {
			if sub := w.At(i); sub != nil {
				elems[i] = project(elems[i], sub)
			}
		}
		return doc.NewArray(elems...)
	default:
		return got
	}
}

// plain converts v for diffing: numbers become float64 and absent stays
// distinct from null.
func plain(v doc.Value) any {
	switch val := v.(type) {
	case nil:
		return absent{}
	case doc.Int, doc.Float:
		f, _ := doc.AsFloat(val)
		return f
	case *doc.Array:
		out := make([]any, val.Len())
		for i, elem := range val.All() {
			out[i] = plain(elem)
		}
		return out
	case *doc.Object:
		out := make(map[string]any, val.Len())
		for k, elem := range val.All() {
			out[k] = plain(elem)
		}
		return out
	default:
		return doc.ToNative(val)
	}
}

type absent struct{}

func renderValue(v doc.Value) string {
	data, err := doc.MarshalCanonical(v)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}
