package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tern-dev/tern/pkg/bridge"
	"github.com/tern-dev/tern/pkg/router"
	"github.com/tern-dev/tern/pkg/socket"
	"github.com/tern-dev/tern/pkg/ws"
)

// Server runs a route table on N workers that share one listening socket.
type Server struct {
	config  *Config
	logger  *slog.Logger
	table   atomic.Pointer[router.Table]
	exec    *bridge.Executor
	pool    *bridge.Pool
	sockets *ws.Manager
	metrics *Metrics

	mu       sync.Mutex
	listener *socket.Listener
	workers  []*worker
	admin    *http.Server
	started  bool
	closed   bool

	draining atomic.Bool
	errCh    chan error
	wg       sync.WaitGroup
}

type worker struct {
	id       int
	srv      *http.Server
	accepted atomic.Int64
}

type workerKey struct{}

// WorkerID returns the index of the worker serving ctx's request.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerKey{}).(int)
	return id, ok
}

// New creates a server. Unset config fields get their defaults.
func New(config *Config) *Server {
	config = config.withDefaults()

	s := &Server{
		config: config,
		logger: config.Logger.With("component", "server"),
		pool:   bridge.NewPool(config.OffloadWorkers),
		errCh:  make(chan error, config.Workers+1),
	}
	s.metrics = newMetrics(config.Registry, config.MetricsNamespace, s.pool)

	opts := []bridge.Option{
		bridge.WithPool(s.pool),
		bridge.WithLogger(config.Logger),
		bridge.WithExposeErrors(config.ExposeErrors),
		bridge.WithErrorHook(s.metrics.handlerError),
	}
	if config.TracerProvider != nil {
		opts = append(opts, bridge.WithTracerProvider(config.TracerProvider))
	}
	s.exec = bridge.New(opts...)

	s.sockets = ws.NewManager(config.WebSocket, s.exec,
		ws.WithObserver(s.metrics),
		ws.WithLogger(config.Logger),
	)
	s.table.Store(router.New().Snapshot())
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() *Config { return s.config }

// Sockets returns the WebSocket manager.
func (s *Server) Sockets() *ws.Manager { return s.sockets }

// Executor returns the execution bridge.
func (s *Server) Executor() *bridge.Executor { return s.exec }

// SetRoutes publishes a route table. Requests already resolved keep the
// table they started with.
func (s *Server) SetRoutes(t *router.Table) {
	if t == nil {
		t = router.New().Snapshot()
	}
	s.table.Store(t)
}

// Routes returns the published route table.
func (s *Server) Routes() *router.Table { return s.table.Load() }

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the socket and starts the workers without blocking.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	l, err := socket.Bind(s.config.Address, s.config.Port, s.config.Backlog,
		socket.WithDeferAccept(s.config.DeferAccept),
		socket.WithLogger(s.config.Logger),
	)
	if err != nil {
		return err
	}

	workers := make([]*worker, 0, s.config.Workers)
	listeners := make([]net.Listener, 0, s.config.Workers)
	for i := range s.config.Workers {
		ln, err := l.CloneForWorker()
		if err != nil {
			for _, ln := range listeners {
				ln.Close()
			}
			l.Close()
			return err
		}
		listeners = append(listeners, ln)
		workers = append(workers, s.newWorker(i))
	}

	s.listener = l
	s.workers = workers
	s.started = true

	for i, w := range workers {
		s.wg.Add(1)
		go s.serveWorker(w, listeners[i])
	}

	if s.config.Admin.Address != "" {
		if err := s.startAdmin(); err != nil {
			s.logger.Error("admin listener failed", "address", s.config.Admin.Address, "error", err)
		}
	}

	s.logger.Info("server started",
		"address", l.Addr().String(),
		"workers", len(workers),
		"offload_workers", s.pool.Size(),
	)
	return nil
}

func (s *Server) newWorker(id int) *worker {
	w := &worker{id: id}
	w.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext: func(net.Listener) context.Context {
			return context.WithValue(context.Background(), workerKey{}, id)
		},
		ConnState: func(_ net.Conn, state http.ConnState) {
			if state == http.StateNew {
				w.accepted.Add(1)
				s.metrics.connAccepted(id)
			}
		},
	}
	return w
}

func (s *Server) serveWorker(w *worker, ln net.Listener) {
	defer s.wg.Done()
	s.logger.Debug("worker accepting", "worker", w.id)
	if err := w.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("worker stopped", "worker", w.id, "error", err)
		s.errCh <- err
	}
}

// Accepted returns the number of connections each worker has accepted.
func (s *Server) Accepted() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make([]int64, len(s.workers))
	for i, w := range s.workers {
		counts[i] = w.accepted.Load()
	}
	return counts
}

// Serve starts the server and blocks until ctx is done or a worker fails,
// then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-s.errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.Shutdown(shutdownCtx))
}

// Run serves until SIGINT or SIGTERM.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := s.Serve(ctx)
	if ctx.Err() != nil {
		s.logger.Info("shutdown signal received")
	}
	return err
}

// Shutdown stops accepting connections, lets in-flight requests finish,
// closes WebSocket connections with "going away" and drains the offload
// pool. Connections still open when ctx ends, or after ShutdownTimeout if
// ctx has no deadline, are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	workers := s.workers
	admin := s.admin
	listener := s.listener
	s.mu.Unlock()

	s.draining.Store(true)
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("shutting down", "workers", len(workers), "websockets", s.sockets.Count())

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	collect := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.srv.Shutdown(ctx); err != nil {
				s.logger.Warn("forcing worker connections closed", "worker", w.id, "error", err)
				w.srv.Close()
				collect(err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		collect(s.sockets.Shutdown(ctx))
	}()
	wg.Wait()

	collect(s.pool.Close(ctx))
	if listener != nil {
		collect(listener.Close())
	}
	if admin != nil {
		collect(admin.Shutdown(ctx))
	}
	s.wg.Wait()

	err := errors.Join(errs...)
	s.logger.Info("shutdown complete", "duration", time.Since(start), "clean", err == nil)
	return err
}
