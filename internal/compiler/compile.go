package compiler

import (
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/rules"
)

// RulesField is the top-level field holding the root node of a rule spec.
const RulesField = "rules"

// nodeForms lists the keys that select a node's form. Exactly one may be set,
// except that "when" requires "then".
var nodeForms = []string{"const", "ref", "script", "max", "min", "when", "shape", "scope", "items", "chain"}

// Option configures compilation.
type Option func(*compiler)

// WithLogger sets the logger used by nodes marked log: true.
// Without it such nodes fail to compile.
func WithLogger(l rules.Logger) Option {
	return func(c *compiler) {
		c.logger = l
	}
}

type compiler struct {
	logger rules.Logger
}

// CompileFile reads and compiles the rule spec at path.
func CompileFile(path string, opts ...Option) (rules.Rule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule spec: %w", err)
	}
	return CompileString(path, string(src), opts...)
}

// CompileString compiles a rule spec from source. name is used in positions.
func CompileString(name, src string, opts ...Option) (rules.Rule, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v, opts...)
}

// Compile builds a rule tree from a CUE value holding a "rules" field.
// Uses the CUE SDK's Go API directly.
func Compile(v cue.Value, opts ...Option) (rules.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	root := v.LookupPath(cue.ParsePath(RulesField))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   RulesField,
			Message: "rules is required",
			Pos:     v.Pos(),
		}
	}

	c := &compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c.node(RulesField, root)
}

// node compiles one rule node. field is its dotted location for errors.
func (c *compiler) node(field string, v cue.Value) (rules.Rule, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("rule node must be a struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	keys, err := labels(v)
	if err != nil {
		return nil, err
	}
	var forms []string
	for _, k := range keys {
		switch {
		case slices.Contains(nodeForms, k):
			forms = append(forms, k)
		case k == "then", k == "log":
		default:
			return nil, &CompileError{
				Field:   field + "." + k,
				Message: "unknown rule form",
				Pos:     v.LookupPath(cue.MakePath(cue.Str(k))).Pos(),
			}
		}
	}
	if len(forms) != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("rule node must set exactly one of %v, got %v", nodeForms, forms),
			Pos:     v.Pos(),
		}
	}

	form := forms[0]
	body := v.LookupPath(cue.MakePath(cue.Str(form)))
	at := field + "." + form

	var r rules.Rule
	switch form {
	case "const":
		r, err = constant(at, body)
	case "ref":
		r, err = ref(at, body)
	case "script":
		r, err = script(at, body)
	case "max", "min":
		r, err = clamp(at, body, form == "max")
	case "when":
		r, err = c.when(field, v, body)
	case "shape":
		r, err = c.shape(at, body)
	case "scope":
		var inner rules.Rule
		if inner, err = c.node(at, body); err == nil {
			r = rules.Scope(inner)
		}
	case "items":
		var inner rules.Rule
		if inner, err = c.node(at, body); err == nil {
			r = rules.Items(inner)
		}
	case "chain":
		r, err = c.chain(at, body)
	}
	if err != nil {
		return nil, err
	}
	if form != "when" && v.LookupPath(cue.ParsePath("then")).Exists() {
		return nil, &CompileError{Field: field + ".then", Message: "then requires when", Pos: v.Pos()}
	}
	return c.logged(field, v, r)
}

func (c *compiler) logged(field string, v cue.Value, r rules.Rule) (rules.Rule, error) {
	logVal := v.LookupPath(cue.ParsePath("log"))
	if !logVal.Exists() {
		return r, nil
	}
	on, err := logVal.Bool()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if !on {
		return r, nil
	}
	if c.logger == nil {
		return nil, &CompileError{
			Field:   field + ".log",
			Message: "log requires a logger; compile with WithLogger",
			Pos:     logVal.Pos(),
		}
	}
	return rules.LogTo(c.logger, r), nil
}

func (c *compiler) when(field string, v, predVal cue.Value) (rules.Rule, error) {
	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".then",
			Message: "when requires then",
			Pos:     v.Pos(),
		}
	}
	pred, err := predicate(field+".when", predVal)
	if err != nil {
		return nil, err
	}
	inner, err := c.node(field+".then", thenVal)
	if err != nil {
		return nil, err
	}
	return rules.When(pred, inner), nil
}

func (c *compiler) shape(field string, v cue.Value) (rules.Rule, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []rules.Field
	for iter.Next() {
		name := iter.Label()
		r, err := c.node(field+"."+name, iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, rules.F(name, r))
	}
	return rules.Shape(fields...), nil
}

func (c *compiler) chain(field string, v cue.Value) (rules.Rule, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var stages []rules.Rule
	for i := 0; list.Next(); i++ {
		r, err := c.node(fmt.Sprintf("%s[%d]", field, i), list.Value())
		if err != nil {
			return nil, err
		}
		stages = append(stages, r)
	}
	return rules.Chain(stages...), nil
}

func constant(field string, v cue.Value) (rules.Rule, error) {
	val, err := toDoc(field, v)
	if err != nil {
		return nil, err
	}
	return rules.Constant(val), nil
}

func ref(field string, v cue.Value) (rules.Rule, error) {
	path, err := pathString(field, v)
	if err != nil {
		return nil, err
	}
	sel := rules.Path(path...)
	return rules.Computed(func(d doc.Value) (doc.Value, error) {
		return sel(d)
	}), nil
}

// clamp accepts a number or {ref: "path"}.
func clamp(field string, v cue.Value, upper bool) (rules.Rule, error) {
	if v.IncompleteKind() == cue.StructKind {
		path, err := pathString(field+".ref", v.LookupPath(cue.ParsePath("ref")))
		if err != nil {
			return nil, err
		}
		if upper {
			return rules.MaximumValueOf(rules.Path(path...)), nil
		}
		return rules.MinimumValueOf(rules.Path(path...)), nil
	}

	n, err := v.Float64()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "limit must be a number or {ref: path}",
			Pos:     v.Pos(),
		}
	}
	if upper {
		return rules.MaximumValue(n), nil
	}
	return rules.MinimumValue(n), nil
}

func predicate(field string, v cue.Value) (rules.Predicate, error) {
	keys, err := labels(v)
	if err != nil {
		return nil, err
	}
	if len(keys) != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: "predicate must set exactly one of changed, any, all, not",
			Pos:     v.Pos(),
		}
	}

	body := v.LookupPath(cue.MakePath(cue.Str(keys[0])))
	at := field + "." + keys[0]
	switch keys[0] {
	case "changed":
		if body.IncompleteKind() == cue.ListKind {
			paths, err := pathList(at, body)
			if err != nil {
				return nil, err
			}
			sels := make([]rules.Selector, len(paths))
			for i, p := range paths {
				sels[i] = rules.Path(p...)
			}
			return rules.PropertiesChanged(rules.Select(sels...)), nil
		}
		path, err := pathString(at, body)
		if err != nil {
			return nil, err
		}
		return rules.PropertyChanged(rules.Path(path...)), nil

	case "any", "all":
		list, err := body.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var preds []rules.Predicate
		for i := 0; list.Next(); i++ {
			p, err := predicate(fmt.Sprintf("%s[%d]", at, i), list.Value())
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if keys[0] == "any" {
			return rules.Any(preds...), nil
		}
		return rules.All(preds...), nil

	case "not":
		p, err := predicate(at, body)
		if err != nil {
			return nil, err
		}
		return rules.Not(p), nil

	default:
		return nil, &CompileError{
			Field:   at,
			Message: "unknown predicate form",
			Pos:     body.Pos(),
		}
	}
}

// labels returns the regular field names of a struct in declaration order.
func labels(v cue.Value) ([]string, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		out = append(out, iter.Label())
	}
	return out, nil
}

func pathString(field string, v cue.Value) ([]string, error) {
	s, err := v.String()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a dotted path string",
			Pos:     v.Pos(),
		}
	}
	path := doc.ParsePath(s)
	if len(path) == 0 {
		return nil, &CompileError{Field: field, Message: "path must not be empty", Pos: v.Pos()}
	}
	return path, nil
}

func pathList(field string, v cue.Value) ([][]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out [][]string
	for i := 0; list.Next(); i++ {
		p, err := pathString(fmt.Sprintf("%s[%d]", field, i), list.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// toDoc converts a concrete CUE value to a document.
func toDoc(field string, v cue.Value) (doc.Value, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &CompileError{Field: field, Message: "value must be concrete", Pos: v.Pos()}
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return doc.Decode(data)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
