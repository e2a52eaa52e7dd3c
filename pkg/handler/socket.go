package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ConnID addresses one open WebSocket connection. The high 32 bits hold a
// slot index and the low 32 bits the slot generation; the zero value never
// names a connection.
type ConnID uint64

// NewConnID packs a slot index and generation.
func NewConnID(index, generation uint32) ConnID {
	return ConnID(uint64(index)<<32 | uint64(generation))
}

// Index returns the slot index.
func (id ConnID) Index() uint32 { return uint32(id >> 32) }

// Generation returns the slot generation.
func (id ConnID) Generation() uint32 { return uint32(id) }

// IsZero reports whether id is unset.
func (id ConnID) IsZero() bool { return id == 0 }

// String formats id as "index.generation".
func (id ConnID) String() string {
	return fmt.Sprintf("%d.%d", id.Index(), id.Generation())
}

// ErrInvalidConnID is returned by ParseConnID for malformed input.
var ErrInvalidConnID = errors.New("handler: invalid connection id")

// ParseConnID parses the String form of a ConnID.
func ParseConnID(s string) (ConnID, error) {
	idx, gen, ok := strings.Cut(s, ".")
	if !ok {
		return 0, ErrInvalidConnID
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return 0, ErrInvalidConnID
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return 0, ErrInvalidConnID
	}
	return NewConnID(uint32(i), uint32(g)), nil
}

// MessageType mirrors the WebSocket data opcodes.
type MessageType int

const (
	MessageText   MessageType = 1
	MessageBinary MessageType = 2
)

// Message is one WebSocket data message.
type Message struct {
	Type MessageType
	Data []byte
}

// NewText builds a text message.
func NewText(s string) Message { return Message{Type: MessageText, Data: []byte(s)} }

// NewBinary builds a binary message.
func NewBinary(b []byte) Message { return Message{Type: MessageBinary, Data: b} }

// Text returns the payload as a string.
func (m Message) Text() string { return string(m.Data) }

// Sender delivers messages to open connections from outside the request
// that created them.
type Sender interface {
	Send(ctx context.Context, id ConnID, msg Message) error
	Broadcast(ctx context.Context, msg Message) int
	Close(id ConnID, code int, reason string) error
}

// SocketEvent is the input of a WebSocket callback.
type SocketEvent struct {
	Conn ConnID

	// Request is the upgrade request, with Conn set.
	Request *Request

	// Message is set for message events.
	Message Message

	// CloseCode is set for close events.
	CloseCode int

	Sender Sender
}

// SocketHandler handles a WebSocket event and returns messages to send back
// on the same connection.
type SocketHandler = Callable[*SocketEvent, []Message]

// SocketFunc wraps fn as a sync socket handler.
func SocketFunc(fn func(context.Context, *SocketEvent) ([]Message, error)) SocketHandler {
	return NewSync(fn)
}

// Socket groups the callbacks of a WebSocket route. Unset callbacks are
// skipped.
type Socket struct {
	OnConnect SocketHandler
	OnMessage SocketHandler
	OnClose   SocketHandler
}
