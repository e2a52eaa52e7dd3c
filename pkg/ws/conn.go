package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/wire"
)

type outbound struct {
	msg   handler.Message
	close bool
	code  int
	text  string
}

// Conn is one WebSocket connection.
type Conn struct {
	id     handler.ConnID
	m      *Manager
	ws     *websocket.Conn
	name   string
	socket *handler.Socket
	req    *handler.Request
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
	closeCode int
}

// ID returns the connection identity.
func (c *Conn) ID() handler.ConnID { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Request returns the upgrade request.
func (c *Conn) Request() *handler.Request { return c.req }

func (c *Conn) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// enqueue queues msg, waiting for room unless ctx ends first.
func (c *Conn) enqueue(ctx context.Context, out outbound) error {
	if c.State() != StateOpen && !out.close {
		return ErrConnectionClosed
	}
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- out:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryEnqueue queues msg without waiting.
func (c *Conn) tryEnqueue(out outbound) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	select {
	case c.send <- out:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// beginClose moves Open to Closing and queues the close frame. The
// connection is torn down if the peer has not answered within CloseTimeout.
func (c *Conn) beginClose(code int, reason string) error {
	if !c.transition(StateOpen, StateClosing) {
		if c.State() == StateClosed {
			return ErrConnectionClosed
		}
		return nil
	}
	c.logger.Debug("closing connection", "code", code, "reason", reason)

	if err := c.tryEnqueueClose(code, reason); err != nil {
		// Queue is full or the writer is gone; send the frame directly.
		wire.WriteClose(c.ws, code, reason, c.m.cfg.WriteTimeout)
	}
	time.AfterFunc(c.m.cfg.CloseTimeout, func() {
		select {
		case <-c.done:
		default:
			c.logger.Debug("close handshake timed out")
			c.ws.Close()
		}
	})
	return nil
}

func (c *Conn) tryEnqueueClose(code int, reason string) error {
	select {
	case c.send <- outbound{close: true, code: code, text: reason}:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// writeLoop is the only writer of data frames and pings.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-c.send:
			if out.close {
				if err := wire.WriteClose(c.ws, out.code, out.text, c.m.cfg.WriteTimeout); err != nil {
					c.abort("write close", err)
					return
				}
				continue
			}
			c.ws.SetWriteDeadline(time.Now().Add(c.m.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(wire.FrameType(out.msg.Type), out.msg.Data); err != nil {
				c.abort("write", err)
				return
			}
			c.m.observer.Message(DirectionOut)

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.m.cfg.WriteTimeout)); err != nil {
				c.abort("ping", err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// abort drops the transport. The read loop notices and finishes the
// connection.
func (c *Conn) abort(op string, err error) {
	select {
	case <-c.done:
		return
	default:
	}
	terr := &TransportError{Conn: c.id, Op: op, Err: err}
	c.logger.Debug("transport error", "error", terr)
	c.ws.Close()
}

// readLoop reads frames until the connection ends, dispatching each data
// message to OnMessage in arrival order.
func (c *Conn) readLoop() {
	cfg := c.m.cfg
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
		return nil
	})
	c.ws.SetCloseHandler(func(code int, _ string) error {
		c.transition(StateOpen, StateClosing)
		payload := []byte{}
		if code != websocket.CloseNoStatusReceived {
			payload = websocket.FormatCloseMessage(code, "")
		}
		c.ws.WriteControl(websocket.CloseMessage, payload, time.Now().Add(cfg.WriteTimeout))
		return nil
	})

	for {
		frameType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))

		msg, ok := wire.MessageFromFrame(frameType, data)
		if !ok {
			continue
		}
		c.m.observer.Message(DirectionIn)

		if c.State() != StateOpen {
			// Frames after our close frame are drained, not dispatched.
			continue
		}
		c.dispatch(c.socket.OnMessage, &handler.SocketEvent{Message: msg})
	}
}

// dispatch runs a callback and queues its replies.
func (c *Conn) dispatch(h handler.SocketHandler, ev *handler.SocketEvent) {
	ev.Conn = c.id
	ev.Request = c.req
	ev.Sender = c.m

	replies, err := c.m.invoker.InvokeSocket(c.ctx, c.name, h, ev)
	if err != nil {
		c.beginClose(websocket.CloseInternalServerErr, "internal error")
		return
	}
	for _, r := range replies {
		if err := c.enqueue(c.ctx, outbound{msg: r}); err != nil {
			return
		}
	}
}

// finish moves the connection to Closed and runs OnClose. It runs once, on
// the read goroutine.
func (c *Conn) finish(cause error) {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosed)))
		c.closeCode = wire.CloseCode(cause)
		close(c.done)
		c.cancel()
		c.ws.Close()
		c.m.arena.release(c.id)

		switch {
		case prev == StateClosing, wire.IsPeerClose(cause):
			c.logger.Debug("connection closed", "code", c.closeCode)
		default:
			c.logger.Debug("connection dropped", "error", &TransportError{Conn: c.id, Op: "read", Err: cause})
		}

		ctx := context.WithoutCancel(c.ctx)
		c.m.invoker.InvokeSocket(ctx, c.name, c.socket.OnClose, &handler.SocketEvent{
			Conn:      c.id,
			Request:   c.req,
			CloseCode: c.closeCode,
			Sender:    c.m,
		})
		c.m.observer.ConnClosed()
		c.m.wg.Done()
	})
}
