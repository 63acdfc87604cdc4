package chainstate

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a class of error returned by the cache.  It
// permits the caller to programmatically determine the category of a
// failure via errors.Is without scraping the error string.
type ErrorKind string

// Error satisfies the error interface.
func (e ErrorKind) Error() string {
	return string(e)
}

const (
	// ErrNotFound indicates a lookup miss where a record was required to
	// be present, such as restoring a sidechain whose record is missing.
	ErrNotFound = ErrorKind("not found")

	// ErrInconsistent indicates a structural assertion about the chain
	// state failed, such as a duplicate sidechain creation or an epoch
	// presented out of order.
	ErrInconsistent = ErrorKind("inconsistent state")

	// ErrInsufficientBalance indicates a certificate would drive a
	// sidechain's balance negative, or reverting a maturing amount
	// would drive it negative.
	ErrInsufficientBalance = ErrorKind("insufficient balance")

	// ErrProofInvalid indicates the injected proof verifier rejected a
	// certificate or backward-transfer request.
	ErrProofInvalid = ErrorKind("proof invalid")

	// ErrQualityRejected indicates a certificate in the same epoch as an
	// existing top-quality certificate did not strictly improve on its
	// quality.
	ErrQualityRejected = ErrorKind("quality rejected")
)

// RuleError identifies an error related to a consensus-visible rule
// violation.  It wraps an ErrorKind and carries a human-readable
// description; errors.Is and errors.As unwrap through it to the kind.
type RuleError struct {
	ErrorCode   ErrorKind
	Description string
}

// Error satisfies the error interface.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying error kind, enabling errors.Is and
// errors.As to work with RuleError.
func (e RuleError) Unwrap() error {
	return e.ErrorCode
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(kind ErrorKind, desc string) RuleError {
	return RuleError{ErrorCode: kind, Description: desc}
}

// ruleErrorf is a convenience wrapper around ruleError that formats the
// description using fmt.Sprintf.
func ruleErrorf(kind ErrorKind, format string, args ...interface{}) RuleError {
	return ruleError(kind, fmt.Sprintf(format, args...))
}

// AssertError identifies an error that indicates an internal code
// consistency issue and should therefore never happen during correct
// usage.  Unlike RuleError, these are not consensus-visible failures —
// they indicate a caller-side bug such as violating Modifier
// uniqueness, calling an update operation a second time for the same
// block, or reading an undo section that was never written.
type AssertError string

// Error satisfies the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// assert panics with an AssertError if cond is false.  It is used at
// preconditions that correct callers can never violate.
func assert(cond bool, msg string) {
	if !cond {
		panic(AssertError(msg))
	}
}

// MultiError is a collection of errors that are reported as a single
// error, used where reporting must continue after the first failure
// and collect every inconsistency found (e.g. restore_backward_transfers).
type MultiError []error

// Error satisfies the error interface, truncating the listed causes
// after the fifth to keep messages bounded.
func (e MultiError) Error() string {
	switch len(e) {
	case 0:
		return "no error"
	case 1:
		return e[0].Error()
	}

	points := make([]string, 0, 5)
	for i, err := range e {
		if i == 5 {
			points = append(points, fmt.Sprintf("... %d more", len(e)-5))
			break
		}
		points = append(points, err.Error())
	}
	msg := points[0]
	for _, p := range points[1:] {
		msg += "; " + p
	}
	return msg
}

// Is reports whether any error contained in e matches target.
func (e MultiError) Is(target error) bool {
	for _, err := range e {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As finds the first error within e that matches target's type and, if
// found, sets target and returns true.
func (e MultiError) As(target interface{}) bool {
	for _, err := range e {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
