// Package socket owns the listening socket shared by all server workers.
//
// Bind creates the socket once per address. Workers call CloneForWorker to
// get their own net.Listener backed by a duplicated descriptor of the same
// kernel socket, so every worker accepts from one queue and the kernel hands
// each connection to exactly one of them.
package socket

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"
)

// Option configures Bind.
type Option func(*options)

type options struct {
	deferAccept time.Duration
	logger      *slog.Logger
}

// WithDeferAccept delays accept until data arrives or d elapses. Only
// honored on Linux.
func WithDeferAccept(d time.Duration) Option {
	return func(o *options) { o.deferAccept = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Listener is a bound, listening socket.
type Listener struct {
	key  string
	addr net.Addr
	file *os.File

	mu     sync.Mutex
	refs   int
	clones []net.Listener
	closed bool
	logger *slog.Logger
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Listener{}
)

// Bind returns the listening socket for address:port, creating it on first
// use. Later calls for the same address share the socket and must each be
// paired with a Close. Port 0 always binds a fresh ephemeral port.
func Bind(address string, port, backlog int, opts ...Option) (*Listener, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	hostport := net.JoinHostPort(address, strconv.Itoa(port))
	if port < 0 || port > 65535 {
		return nil, &BindError{Address: hostport, Kind: KindInvalidAddress, Err: fmt.Errorf("port %d out of range", port)}
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if port != 0 {
		if l, ok := registry[hostport]; ok {
			l.mu.Lock()
			l.refs++
			l.mu.Unlock()
			return l, nil
		}
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", hostport)
	if err != nil {
		return nil, &BindError{Address: hostport, Kind: KindInvalidAddress, Err: err}
	}

	f, err := listen(tcpAddr, backlog, o)
	if err != nil {
		return nil, &BindError{Address: hostport, Kind: classify(err), Err: err}
	}

	// A throwaway duplicate tells us the bound address, including the port
	// picked by the kernel for port 0.
	fl, err := net.FileListener(f)
	if err != nil {
		f.Close()
		return nil, &BindError{Address: hostport, Kind: KindOther, Err: err}
	}
	addr := fl.Addr()
	fl.Close()

	key := hostport
	if port == 0 {
		key = addr.String()
	}
	l := &Listener{
		key:    key,
		addr:   addr,
		file:   f,
		refs:   1,
		logger: o.logger.With("component", "socket", "addr", addr.String()),
	}
	registry[key] = l
	l.logger.Debug("socket bound", "backlog", backlog)
	return l, nil
}

// DefaultBacklog is used when Bind is given a non-positive backlog.
const DefaultBacklog = 1024

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.addr }

// CloneForWorker returns a listener on a duplicate of the socket descriptor.
// Closing it does not affect the other clones.
func (l *Listener) CloneForWorker() (net.Listener, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	ln, err := net.FileListener(l.file)
	if err != nil {
		return nil, err
	}
	l.clones = append(l.clones, ln)
	return ln, nil
}

// Close releases one reference. The socket and all its clones are closed
// when the last reference is released.
func (l *Listener) Close() error {
	registryMu.Lock()
	defer registryMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.refs--
	if l.refs > 0 {
		return nil
	}

	l.closed = true
	if registry[l.key] == l {
		delete(registry, l.key)
	}
	for _, c := range l.clones {
		c.Close()
	}
	l.clones = nil
	l.logger.Debug("socket closed")
	return l.file.Close()
}
