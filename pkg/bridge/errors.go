package bridge

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tern-dev/tern/pkg/handler"
)

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("bridge: offload pool closed")

// ErrNoResponse is wrapped when a handler returns neither a response nor an
// error.
var ErrNoResponse = errors.New("bridge: handler returned no response")

// ErrInvalidStatus is wrapped when a stage produces a response whose status
// cannot be written.
var ErrInvalidStatus = errors.New("bridge: invalid response status")

// validStatus reports whether net/http accepts code as a response status.
func validStatus(code int) bool {
	return code >= 100 && code <= 999
}

// checkStatus returns an ErrInvalidStatus error for unwritable responses.
func checkStatus(res *handler.Response) error {
	if code := res.StatusCode(); !validStatus(code) {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, code)
	}
	return nil
}

// Stage names the part of the chain that failed.
type Stage string

const (
	StageBefore  Stage = "before"
	StageHandler Stage = "handler"
	StageAfter   Stage = "after"
	StageSocket  Stage = "socket"
)

// HandlerError is an error or panic caught at the bridge boundary.
type HandlerError struct {
	Stage Stage

	// Name is the middleware name or the route pattern.
	Name string

	Message string

	// Status overrides the 500 response when non-zero.
	Status int

	Err   error
	Panic any
	Stack []byte
}

func (e *HandlerError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("bridge: %s failed: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("bridge: %s %s failed: %s", e.Stage, e.Name, e.Message)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// StatusCode returns the response status for the error.
func (e *HandlerError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Response renders the error. Messages of errors without a status override
// are only included when expose is set.
func (e *HandlerError) Response(expose bool) *handler.Response {
	status := e.StatusCode()
	body := http.StatusText(status)
	if e.Status != 0 || expose {
		body = e.Message
	}
	return handler.Text(status, body)
}

func newHandlerError(stage Stage, name string, err error) *HandlerError {
	he := &HandlerError{Stage: stage, Name: name, Message: err.Error(), Err: err}

	var pe *handler.PanicError
	if errors.As(err, &pe) {
		he.Panic = pe.Value
		he.Stack = pe.Stack
		he.Message = fmt.Sprintf("panic: %v", pe.Value)
	}

	var se *handler.StatusError
	if errors.As(err, &se) && validStatus(se.StatusCode()) {
		he.Status = se.StatusCode()
		he.Message = se.Error()
	}
	return he
}
