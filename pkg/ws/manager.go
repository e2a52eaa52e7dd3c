package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/wire"
)

// Invoker runs socket callbacks. *bridge.Executor implements it.
type Invoker interface {
	InvokeSocket(ctx context.Context, name string, h handler.SocketHandler, ev *handler.SocketEvent) ([]handler.Message, error)
}

// Message directions reported to the Observer.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Observer receives connection events, for metrics.
type Observer interface {
	ConnOpened()
	ConnClosed()
	Message(direction string)
}

type nopObserver struct{}

func (nopObserver) ConnOpened()    {}
func (nopObserver) ConnClosed()    {}
func (nopObserver) Message(string) {}

// Manager owns all WebSocket connections of a server.
type Manager struct {
	cfg      *Config
	upgrader websocket.Upgrader
	invoker  Invoker
	observer Observer
	logger   *slog.Logger

	arena    arena
	mu       sync.Mutex
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the connection observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager that runs callbacks through invoker.
func NewManager(cfg *Config, invoker Invoker, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:     cfg,
		invoker: invoker,
		upgrader: websocket.Upgrader{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin:       cfg.CheckOrigin,
		},
	}
	if m.upgrader.CheckOrigin == nil {
		m.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "ws")
	return m
}

// Serve upgrades r and runs the connection until it closes. name labels the
// route in logs; req is the admitted upgrade request.
//
// Serve blocks for the lifetime of the connection, so frames of one
// connection are handled in arrival order on the calling goroutine.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, name string, sock *handler.Socket, req *handler.Request) error {
	if m.shutdown.Load() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return ErrShuttingDown
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		m.logger.Debug("upgrade failed", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &Conn{
		m:      m,
		ws:     conn,
		name:   name,
		socket: sock,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan outbound, m.cfg.SendQueueSize),
		done:   make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	// Registration is serialized with Shutdown so that every connection it
	// does not see is refused here.
	m.mu.Lock()
	if m.shutdown.Load() {
		m.mu.Unlock()
		wire.WriteClose(conn, websocket.CloseGoingAway, "server shutting down", m.cfg.WriteTimeout)
		conn.Close()
		cancel()
		return ErrShuttingDown
	}
	m.wg.Add(1)
	c.id = m.arena.acquire(c)
	c.req = req.Clone()
	c.req.Conn = c.id
	c.logger = m.logger.With("conn_id", c.id.String(), "route", name)
	c.transition(StateConnecting, StateOpen)
	m.mu.Unlock()

	m.observer.ConnOpened()
	c.logger.Debug("connection open")

	go c.writeLoop()
	c.dispatch(sock.OnConnect, &handler.SocketEvent{})
	c.readLoop()
	return nil
}

// Send queues msg for the connection id. It waits for queue space unless
// ctx ends first.
func (m *Manager) Send(ctx context.Context, id handler.ConnID, msg handler.Message) error {
	c, ok := m.arena.lookup(id)
	if !ok {
		return ErrConnectionClosed
	}
	return c.enqueue(ctx, outbound{msg: msg})
}

// TrySend queues msg without waiting.
func (m *Manager) TrySend(id handler.ConnID, msg handler.Message) error {
	c, ok := m.arena.lookup(id)
	if !ok {
		return ErrConnectionClosed
	}
	return c.tryEnqueue(outbound{msg: msg})
}

// Broadcast queues msg on every open connection without waiting and returns
// how many accepted it.
func (m *Manager) Broadcast(_ context.Context, msg handler.Message) int {
	n := 0
	for _, c := range m.arena.all() {
		if c.tryEnqueue(outbound{msg: msg}) == nil {
			n++
		}
	}
	return n
}

// Close starts a server-initiated close of id.
func (m *Manager) Close(id handler.ConnID, code int, reason string) error {
	c, ok := m.arena.lookup(id)
	if !ok {
		return ErrConnectionClosed
	}
	return c.beginClose(code, reason)
}

// Lookup returns the live connection for id.
func (m *Manager) Lookup(id handler.ConnID) (*Conn, bool) {
	return m.arena.lookup(id)
}

// State returns the state of id. Unknown IDs report StateClosed.
func (m *Manager) State(id handler.ConnID) State {
	c, ok := m.arena.lookup(id)
	if !ok {
		return StateClosed
	}
	return c.State()
}

// Count returns the number of live connections.
func (m *Manager) Count() int { return m.arena.count() }

// IDs lists the live connection IDs.
func (m *Manager) IDs() []handler.ConnID {
	conns := m.arena.all()
	ids := make([]handler.ConnID, len(conns))
	for i, c := range conns {
		ids[i] = c.id
	}
	return ids
}

// Shutdown rejects new upgrades, closes every connection with "going away"
// and waits for them to finish. When ctx ends first the remaining
// connections are dropped without a handshake.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown.Store(true)
	conns := m.arena.all()
	m.mu.Unlock()

	for _, c := range conns {
		c.beginClose(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	for _, c := range m.arena.all() {
		c.ws.Close()
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		m.logger.Warn("connections still finishing after forced close")
	}
	return ctx.Err()
}
