package router

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Resolve when no route matches.
	ErrNotFound = errors.New("router: not found")

	// ErrMalformedPattern is wrapped by ConflictError for unparsable patterns.
	ErrMalformedPattern = errors.New("router: malformed pattern")

	// ErrInvalidMethod is wrapped by ConflictError for unknown methods.
	ErrInvalidMethod = errors.New("router: invalid method")

	// ErrInvalidHandler is wrapped by ConflictError when the handler is empty.
	ErrInvalidHandler = errors.New("router: invalid handler")
)

// ConflictError rejects a registration. The router state is unchanged.
type ConflictError struct {
	Method  string
	Pattern string
	Reason  string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("router: cannot register %s %q: %s", e.Method, e.Pattern, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func malformed(method, pattern, format string, args ...any) *ConflictError {
	return &ConflictError{
		Method:  method,
		Pattern: pattern,
		Reason:  fmt.Sprintf(format, args...),
		Err:     ErrMalformedPattern,
	}
}
