package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Error reports a validator that could not run against the document it was
// given. Invalid values are never errors; see Failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path locates the target the validator was applied to.
	Path []string

	// Err is the underlying error, if any.
	Err error
}

// ErrorCode categorizes validation errors.
type ErrorCode string

const (
	// ErrCodeValidatorFailed indicates a leaf function returned an error.
	ErrCodeValidatorFailed ErrorCode = "VALIDATOR_FAILED"

	// ErrCodePredicateFailed indicates a When predicate returned an error.
	ErrCodePredicateFailed ErrorCode = "PREDICATE_FAILED"

	// ErrCodeNotObject indicates Shape was applied to a non-record value.
	ErrCodeNotObject ErrorCode = "NOT_OBJECT"

	// ErrCodeNotArray indicates Items was applied to a non-array value.
	ErrCodeNotArray ErrorCode = "NOT_ARRAY"

	// ErrCodeUnknownValidator indicates a Validator outside the sealed set.
	ErrCodeUnknownValidator ErrorCode = "UNKNOWN_VALIDATOR"
)

// Error implements the error interface.
func (e *Error) Error() string {
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
func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err is or wraps an *Error.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
