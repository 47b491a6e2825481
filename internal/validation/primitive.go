package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/roach88/derive/internal/doc"
)

// Messages for the primitive validators.
const (
	MsgRequired  = "required"
	MsgEmail     = "invalid email"
	MsgNotNumber = "not a number"
)

// Required fails on absent, null, empty string, and empty array values.
func Required() Validator {
	return check1(func(v doc.Value) (string, bool) {
		switch t := v.(type) {
		case nil, doc.Null:
			return MsgRequired, false
		case doc.String:
			return MsgRequired, t != ""
		case *doc.Array:
			return MsgRequired, t.Len() > 0
		default:
			return "", true
		}
	})
}

// MaxLength fails on strings or arrays longer than n. Strings count runes.
// Absent values pass.
func MaxLength(n int) Validator {
	return check1(func(v doc.Value) (string, bool) {
		l, ok := length(v)
		return fmt.Sprintf("max length %d", n), !ok || l <= n
	})
}

// MinLength fails on strings or arrays shorter than n. Absent values pass.
func MinLength(n int) Validator {
	return check1(func(v doc.Value) (string, bool) {
		l, ok := length(v)
		return fmt.Sprintf("min length %d", n), !ok || l >= n
	})
}

// Between fails on numbers outside [lo, hi] and on non-numeric values.
// Absent values pass.
func Between(lo, hi float64) Validator {
	return check1(func(v doc.Value) (string, bool) {
		if v == nil {
			return "", true
		}
		f, ok := doc.AsFloat(v)
		if !ok {
			return MsgNotNumber, false
		}
		return fmt.Sprintf("must be between %g and %g", lo, hi), f >= lo && f <= hi
	})
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email fails on strings that do not look like an email address.
// Absent and empty values pass.
func Email() Validator {
	return Matches(emailPattern, MsgEmail)
}

// Matches fails on strings not matched by re, with msg as the error.
// Absent and empty values pass.
func Matches(re *regexp.Regexp, msg string) Validator {
	return check1(func(v doc.Value) (string, bool) {
		s, ok := v.(doc.String)
		if !ok || s == "" {
			return msg, v == nil || ok
		}
		return msg, re.MatchString(string(s))
	})
}

// Custom validates with fn, which sees the value and the ambient document.
// It returns an error message, or "" when the value is valid.
func Custom(fn func(value, d doc.Value) string) Validator {
	return Leaf(func(in Input) (Result, error) {
		if msg := fn(in.Value, in.Doc); msg != "" {
			return Fail(msg), nil
		}
		return Success{}, nil
	})
}

// check1 adapts a single-message predicate to a leaf validator.
func check1(fn func(v doc.Value) (msg string, ok bool)) Validator {
	return Leaf(func(in Input) (Result, error) {
		if msg, ok := fn(in.Value); !ok {
			return Fail(msg), nil
		}
		return Success{}, nil
	})
}

func length(v doc.Value) (int, bool) {
	switch t := v.(type) {
	case doc.String:
		return utf8.RuneCountInString(string(t)), true
	case *doc.Array:
		return t.Len(), true
	default:
		return 0, false
	}
}
