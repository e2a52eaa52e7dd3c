package wire

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tern-dev/tern/pkg/handler"
)

// IsUpgrade reports whether r asks for a WebSocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// FrameType maps a message type to the gorilla/websocket opcode.
func FrameType(t handler.MessageType) int {
	if t == handler.MessageBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// MessageFromFrame converts a data frame read from gorilla/websocket.
// Control opcodes are rejected.
func MessageFromFrame(frameType int, data []byte) (handler.Message, bool) {
	switch frameType {
	case websocket.TextMessage:
		return handler.Message{Type: handler.MessageText, Data: data}, true
	case websocket.BinaryMessage:
		return handler.Message{Type: handler.MessageBinary, Data: data}, true
	}
	return handler.Message{}, false
}

// WriteClose sends a close frame with the given code and reason.
func WriteClose(c *websocket.Conn, code int, reason string, timeout time.Duration) error {
	return c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(timeout))
}

// CloseCode extracts the close code from a read error. Errors that did not
// come from a close frame report an abnormal closure.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// IsPeerClose reports whether err is the peer closing normally.
func IsPeerClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
