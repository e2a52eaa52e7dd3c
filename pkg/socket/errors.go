package socket

import (
	"errors"
	"fmt"
)

// ErrorKind classifies bind failures.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindAddressInUse
	KindPermissionDenied
	KindInvalidAddress
)

func (k ErrorKind) String() string {
	switch k {
	case KindAddressInUse:
		return "address in use"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidAddress:
		return "invalid address"
	default:
		return "bind failed"
	}
}

// Sentinels matched by errors.Is against a *BindError of the same kind.
var (
	ErrAddressInUse     = errors.New("socket: address in use")
	ErrPermissionDenied = errors.New("socket: permission denied")
	ErrInvalidAddress   = errors.New("socket: invalid address")

	// ErrClosed is returned when cloning a closed listener.
	ErrClosed = errors.New("socket: listener closed")
)

// BindError reports a failure to create the listening socket. It is fatal
// at startup.
type BindError struct {
	Address string
	Kind    ErrorKind
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("socket: bind %s: %s: %v", e.Address, e.Kind, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *BindError) Is(target error) bool {
	switch target {
	case ErrAddressInUse:
		return e.Kind == KindAddressInUse
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	case ErrInvalidAddress:
		return e.Kind == KindInvalidAddress
	}
	return false
}
