package session

import (
	"errors"
	"fmt"
)

// passQuota counts rule applications within one Settle call.
//
// Cascading fields need one pass per link of the cascade; fields that
// feed each other without a fixed point never stop. The quota turns the
// latter into an error instead of a hang.
type passQuota struct {
	limit   int
	current int
}

func newPassQuota(limit int) *passQuota {
	return &passQuota{limit: limit}
}

// Check counts one pass and fails once the limit is exceeded.
func (q *passQuota) Check() error {
	q.current++
	if q.current > q.limit {
		return &PassesExceededError{Passes: q.current - 1, Limit: q.limit}
	}
	return nil
}

// Current returns the number of passes counted so far.
func (q *passQuota) Current() int {
	return q.current
}

// PassesExceededError is returned when Settle does not reach a fixed point.
type PassesExceededError struct {
	Passes int // Passes run before giving up
	Limit  int // Maximum allowed passes
}

// Error implements the error interface.
func (e *PassesExceededError) Error() string {
	return fmt.Sprintf("model did not settle: %d passes, limit %d", e.Passes, e.Limit)
}

// IsPassesExceeded returns true if err is or wraps a PassesExceededError.
func IsPassesExceeded(err error) bool {
	var pe *PassesExceededError
	return errors.As(err, &pe)
}
