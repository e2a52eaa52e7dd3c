package ws

import (
	"errors"
	"fmt"

	"github.com/tern-dev/tern/pkg/handler"
)

var (
	// ErrConnectionClosed is returned when addressing a connection that has
	// terminated or never existed.
	ErrConnectionClosed = errors.New("ws: connection closed")

	// ErrSendQueueFull is returned by non-blocking sends when the
	// connection's queue is full.
	ErrSendQueueFull = errors.New("ws: send queue full")

	// ErrShuttingDown rejects upgrades once Shutdown has begun.
	ErrShuttingDown = errors.New("ws: manager shutting down")
)

// TransportError is an I/O failure that forced a connection closed.
type TransportError struct {
	Conn handler.ConnID
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ws: connection %s: %s: %v", e.Conn, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
