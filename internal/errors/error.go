package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategorySocket  Category = "socket"
	CategoryRouting Category = "routing"
	CategoryConfig  Category = "config"
	CategoryRuntime Category = "runtime"
	CategoryCLI     Category = "cli"
)

// TernError is a structured error with an explanation and a suggested fix.
type TernError struct {
	// Code is a unique error identifier (e.g., "T001").
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example shows a correct configuration or call.
	Example string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *TernError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *TernError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *TernError) WithSuggestion(s string) *TernError {
	e.Suggestion = s
	return e
}

// WithExample adds an example to the error.
func (e *TernError) WithExample(ex string) *TernError {
	e.Example = ex
	return e
}

// WithDetail replaces the explanation.
func (e *TernError) WithDetail(d string) *TernError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *TernError) Wrap(err error) *TernError {
	e.Wrapped = err
	return e
}

// New creates a TernError from a registered error code.
func New(code string) *TernError {
	template, ok := registry[code]
	if !ok {
		return &TernError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &TernError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a TernError with a formatted message and no code.
func Newf(category Category, format string, args ...any) *TernError {
	return &TernError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}
