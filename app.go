package tern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/router"
	"github.com/tern-dev/tern/pkg/server"
	"github.com/tern-dev/tern/pkg/static"
	"github.com/tern-dev/tern/pkg/ws"
)

// ErrStartupHook wraps the error of a failing startup hook.
var ErrStartupHook = errors.New("tern: startup hook failed")

// Hook runs at startup or shutdown.
type Hook func(ctx context.Context) error

// App wires a router to a server.
//
// Routes may be registered before or after Start; every registration
// publishes a new route table.
type App struct {
	router *router.Router
	server *server.Server
	logger *slog.Logger

	// publishMu orders snapshot and store so a stale table never wins.
	publishMu sync.Mutex

	mu       sync.Mutex
	startup  []Hook
	shutdown []Hook
	running  bool
}

// New creates an App. A nil config uses DefaultConfig.
func New(cfg *Config) *App {
	srv := server.New(cfg)
	return &App{
		router: router.New(),
		server: srv,
		logger: srv.Config().Logger.With("component", "app"),
	}
}

// Route registers h for method and pattern.
func (a *App) Route(method, pattern string, h Handler, mw ...Middleware) error {
	if _, err := a.router.Add(method, pattern, h, mw...); err != nil {
		return err
	}
	a.publish()
	return nil
}

// mustRoute panics on registration errors, like http.ServeMux.
func (a *App) mustRoute(method, pattern string, h Handler, mw []Middleware) {
	if err := a.Route(method, pattern, h, mw...); err != nil {
		panic(fmt.Sprintf("tern: %v", err))
	}
}

// Get registers a GET route. It panics on an invalid pattern or a conflict.
func (a *App) Get(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodGet, pattern, h, mw)
}

// Post registers a POST route.
func (a *App) Post(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodPost, pattern, h, mw)
}

// Put registers a PUT route.
func (a *App) Put(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodPut, pattern, h, mw)
}

// Patch registers a PATCH route.
func (a *App) Patch(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodPatch, pattern, h, mw)
}

// Delete registers a DELETE route.
func (a *App) Delete(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodDelete, pattern, h, mw)
}

// Head registers a HEAD route.
func (a *App) Head(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodHead, pattern, h, mw)
}

// Options registers an OPTIONS route.
func (a *App) Options(pattern string, h Handler, mw ...Middleware) {
	a.mustRoute(http.MethodOptions, pattern, h, mw)
}

// Const registers a route whose handler runs once; its response is served
// to every later request.
func (a *App) Const(method, pattern string, h Handler, mw ...Middleware) error {
	return a.Route(method, pattern, constHandler(h), mw...)
}

// WebSocket registers a socket route. Before middleware runs on the upgrade
// request and may reject it.
func (a *App) WebSocket(pattern string, sock Socket, mw ...Middleware) error {
	if _, err := a.router.AddSocket(pattern, sock, mw...); err != nil {
		return err
	}
	a.publish()
	return nil
}

// Use adds global middleware.
func (a *App) Use(mw ...Middleware) error {
	if err := a.router.Use(mw...); err != nil {
		return err
	}
	a.publish()
	return nil
}

// UseRoute adds middleware to a single route.
func (a *App) UseRoute(method, pattern string, mw ...Middleware) error {
	if err := a.router.UseRoute(method, pattern, mw...); err != nil {
		return err
	}
	a.publish()
	return nil
}

// Static serves src under prefix for GET and HEAD.
func (a *App) Static(prefix string, src static.Source, opts ...static.Options) error {
	var o static.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	o.Param = "path"
	h := static.Handler(src, o)

	prefix = "/" + strings.Trim(prefix, "/")
	wildcard := strings.TrimSuffix(prefix, "/") + "/*path"
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		for _, pattern := range []string{prefix, wildcard} {
			if _, err := a.router.Add(method, pattern, h); err != nil {
				return err
			}
		}
	}
	a.publish()
	return nil
}

// OnStartup adds a hook run by Start before the socket is bound.
func (a *App) OnStartup(h Hook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startup = append(a.startup, h)
}

// OnShutdown adds a hook run by Shutdown after the server has drained.
func (a *App) OnShutdown(h Hook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdown = append(a.shutdown, h)
}

func (a *App) publish() {
	a.publishMu.Lock()
	defer a.publishMu.Unlock()
	a.server.SetRoutes(a.router.Snapshot())
}

// Send queues msg for the WebSocket connection id.
func (a *App) Send(ctx context.Context, id ConnID, msg Message) error {
	return a.server.Sockets().Send(ctx, id, msg)
}

// Broadcast queues msg on every open WebSocket connection.
func (a *App) Broadcast(ctx context.Context, msg Message) int {
	return a.server.Sockets().Broadcast(ctx, msg)
}

// CloseConn starts closing the WebSocket connection id.
func (a *App) CloseConn(id ConnID, code int, reason string) error {
	return a.server.Sockets().Close(id, code, reason)
}

// Sender returns the WebSocket sender for use outside handlers.
func (a *App) Sender() handler.Sender { return a.server.Sockets() }

// Server returns the underlying server.
func (a *App) Server() *server.Server { return a.server }

// Router returns the underlying router.
func (a *App) Router() *router.Router { return a.router }

// Addr returns the bound address, or nil before Start.
func (a *App) Addr() net.Addr { return a.server.Addr() }

// ServeHTTP serves one request against the current routes without the
// shared socket, for tests and embedding.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.server.ServeHTTP(w, r)
}

// Start runs the startup hooks and starts the server without blocking.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return server.ErrAlreadyStarted
	}
	hooks := append([]Hook(nil), a.startup...)
	a.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrStartupHook, err)
		}
	}

	a.publish()
	if err := a.server.Start(); err != nil {
		return err
	}

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()
	a.logger.Info("app started", "address", a.server.Addr().String(), "routes", a.router.Len())
	return nil
}

// Shutdown drains the server and runs the shutdown hooks. Hook errors do
// not stop later hooks.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := append([]Hook(nil), a.shutdown...)
	a.running = false
	a.mu.Unlock()

	errs := []error{a.server.Shutdown(ctx)}
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			a.logger.Error("shutdown hook failed", "error", err)
			errs = append(errs, fmt.Errorf("tern: shutdown hook: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Serve starts the app and blocks until ctx is done, then shuts down
// within the configured ShutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.server.Config().ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Run serves until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Sockets returns the WebSocket manager.
func (a *App) Sockets() *ws.Manager { return a.server.Sockets() }
