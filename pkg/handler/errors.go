package handler

import (
	"fmt"
	"net/http"
)

// StatusError is an error that chooses the status of the error response.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

// Error builds an error that turns into a response with the given status.
func Error(status int, message string) error {
	return &StatusError{Status: status, Message: message}
}

// Errorf is Error with formatting.
func Errorf(status int, format string, args ...any) error {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a status to err.
func WrapError(status int, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Status: status, Message: err.Error(), Err: err}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// StatusCode returns the response status carried by the error.
func (e *StatusError) StatusCode() int { return e.Status }

func (e *StatusError) Unwrap() error { return e.Err }
