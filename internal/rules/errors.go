package rules

import (
	"errors"
	"fmt"
	"strings"
)

// RuleError reports a failure while applying a rule tree.
//
// Caller-supplied functions are not recovered or retried: their error is
// wrapped with the path where it happened and returned at once. The
// original error stays reachable through errors.Is and errors.As.
type RuleError struct {
	// Code identifies the error category.
	Code RuleErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the failing field. Array elements appear as their
	// identity token, or their index when untagged.
	Path []string

	// Err is the underlying error, if any.
	Err error
}

// RuleErrorCode categorizes rule errors.
type RuleErrorCode string

const (
	// ErrCodeRuleFailed indicates a leaf function returned an error.
	ErrCodeRuleFailed RuleErrorCode = "RULE_FAILED"

	// ErrCodePredicateFailed indicates a predicate or selector returned an error.
	ErrCodePredicateFailed RuleErrorCode = "PREDICATE_FAILED"

	// ErrCodeNotObject indicates Shape was applied to a non-record value.
	ErrCodeNotObject RuleErrorCode = "NOT_OBJECT"

	// ErrCodeNotArray indicates Items was applied to a non-array value.
	ErrCodeNotArray RuleErrorCode = "NOT_ARRAY"

	// ErrCodeDuplicateIdentity indicates two elements of one array carry
	// the same identity token.
	ErrCodeDuplicateIdentity RuleErrorCode = "DUPLICATE_IDENTITY"

	// ErrCodeNotNumber indicates a clamp received a non-numeric value.
	ErrCodeNotNumber RuleErrorCode = "NOT_NUMBER"

	// ErrCodeUnknownRule indicates a Rule or Predicate outside the sealed set.
	ErrCodeUnknownRule RuleErrorCode = "UNKNOWN_RULE"
)

// Error implements the error interface.
func (e *RuleError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (path=%s)", strings.Join(e.Path, "."))
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsRuleError returns true if err is or wraps a *RuleError.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// IsDuplicateIdentity returns true if err reports a duplicated identity token.
// Uses errors.As to handle wrapped errors.
func IsDuplicateIdentity(err error) bool {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDuplicateIdentity
	}
	return false
}

// wrapError attaches path to err. A *RuleError raised deeper keeps its code
// and gains the path if it had none. The caller's error value is never
// modified: leaves may return the same error from every call.
func wrapError(code RuleErrorCode, path []string, err error) error {
	var re *RuleError
	if !errors.As(err, &re) {
		return &RuleError{Code: code, Path: path, Err: err}
	}
	if len(re.Path) > 0 {
		return err
	}
	if direct, ok := err.(*RuleError); ok {
		cp := *direct
		cp.Path = path
		return &cp
	}
	return &RuleError{Code: re.Code, Path: path, Err: err}
}
