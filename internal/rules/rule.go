package rules

import "github.com/roach88/derive/internal/doc"

// Rule is a sealed interface over the rule variants: LeafRule, WhenRule,
// ShapeRule, ScopeRule, ItemsRule, ChainRule, and LogRule.
type Rule interface {
	rule() // Sealed - only the variants below implement it
}

// Input is what a leaf function sees.
type Input struct {
	// Doc is the ambient document.
	Doc doc.Value
	// Prev is the ambient previous document; nil when there is none.
	Prev doc.Value
	// Value is the target's current value: the field value inside Shape,
	// the element inside Items, or the candidate inside a Chain stage.
	Value doc.Value
}

// LeafFunc computes a value. Returning nil removes the target field.
type LeafFunc func(in Input) (doc.Value, error)

// LeafRule computes its result directly.
type LeafRule struct {
	Fn LeafFunc
}

// WhenRule applies Rule only when Pred holds.
type WhenRule struct {
	Pred Predicate
	Rule Rule
}

// Field binds a rule to a record key.
type Field struct {
	Key  string
	Rule Rule
}

// ShapeRule applies a rule per field of a record.
type ShapeRule struct {
	Fields []Field
}

// ScopeRule evaluates Rule with the target as its ambient document.
type ScopeRule struct {
	Rule Rule
}

// ItemsRule evaluates Rule per array element, correlated by identity.
type ItemsRule struct {
	Rule Rule
}

// ChainRule pipes a value through Rules in order.
type ChainRule struct {
	Rules []Rule
}

// LogRule reports the changes made by Rule to Logger.
type LogRule struct {
	Logger Logger
	Rule   Rule
}

func (LeafRule) rule()  {}
func (WhenRule) rule()  {}
func (ShapeRule) rule() {}
func (ScopeRule) rule() {}
func (ItemsRule) rule() {}
func (ChainRule) rule() {}
func (LogRule) rule()   {}

// When gates r on p. When p is false the target is left as it is.
func When(p Predicate, r Rule) Rule {
	return WhenRule{Pred: p, Rule: r}
}

// F is a shorthand for Field.
func F(key string, r Rule) Field {
	return Field{Key: key, Rule: r}
}

// Shape builds a field-wise rule. Field rules read the ambient document of
// the record, not the field value, unless wrapped in Scope or Items.
// Declaration order decides where new keys are appended.
func Shape(fields ...Field) Rule {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return ShapeRule{Fields: fs}
}

// Scope makes the target its own root document for r.
func Scope(r Rule) Rule {
	return ScopeRule{Rule: r}
}

// Items applies r to every element of the target array. Each element is
// paired with the previous element carrying the same identity, or with no
// previous element at all.
func Items(r Rule) Rule {
	return ItemsRule{Rule: r}
}

// Chain builds a value pipeline. The first rule reads the ambient document;
// every later rule receives the previous stage's output as both its document
// and its target.
func Chain(rs ...Rule) Rule {
	out := make([]Rule, len(rs))
	copy(out, rs)
	return ChainRule{Rules: out}
}

// LogTo reports every change made by r to l. The result is unaffected.
func LogTo(l Logger, r Rule) Rule {
	return LogRule{Logger: l, Rule: r}
}

// Decorator wraps a rule. Decorators compose left to right with Pipe.
type Decorator func(Rule) Rule

// If returns a decorator equivalent to When(p, ·).
func If(p Predicate) Decorator {
	return func(r Rule) Rule { return When(p, r) }
}

// LoggedTo returns a decorator equivalent to LogTo(l, ·).
func LoggedTo(l Logger) Decorator {
	return func(r Rule) Rule { return LogTo(l, r) }
}

// Pipe applies decorators to r from left to right:
//
//	Pipe(Computed(f), If(PropertyChanged(Path("b"))), LoggedTo(l))
//
// is LogTo(l, When(PropertyChanged(Path("b")), Computed(f))).
func Pipe(r Rule, ds ...Decorator) Rule {
	for _, d := range ds {
		r = d(r)
	}
	return r
}
