package router

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/tern-dev/tern/pkg/handler"
)

// RouteKey identifies a route: the method plus the normalized pattern.
type RouteKey struct {
	Method  string
	Pattern string
}

func (k RouteKey) String() string { return k.Method + " " + k.Pattern }

// RouteEntry is one registered route.
type RouteEntry struct {
	Key     RouteKey
	Method  string
	Pattern Pattern

	// Handler serves plain HTTP requests. It is unset for WebSocket routes.
	Handler handler.Handler

	// Socket holds the callbacks of a WebSocket route.
	Socket *handler.Socket

	// Middleware is the route-scoped middleware given at registration.
	Middleware []handler.Middleware

	seq    uint64
	params []string
	before []handler.Middleware
	after  []handler.Middleware
}

// IsSocket reports whether the route upgrades to WebSocket.
func (e *RouteEntry) IsSocket() bool { return e.Socket != nil }

// Kind returns the handler kind.
func (e *RouteEntry) Kind() handler.Kind { return e.Handler.Kind() }

// Router collects route and middleware registrations.
type Router struct {
	mu     sync.Mutex
	seq    uint64
	routes map[RouteKey]*RouteEntry
	global []handler.Middleware
	scoped map[RouteKey][]handler.Middleware
}

// New creates an empty router.
func New() *Router {
	return &Router{
		routes: make(map[RouteKey]*RouteEntry),
		scoped: make(map[RouteKey][]handler.Middleware),
	}
}

// Add registers h for method and pattern with optional route-scoped
// middleware. A route with the same key is replaced.
func (r *Router) Add(method, pattern string, h handler.Handler, mw ...handler.Middleware) (*RouteEntry, error) {
	m, ok := handler.NormalizeMethod(method)
	if !ok {
		return nil, &ConflictError{Method: method, Pattern: pattern, Reason: "unknown method", Err: ErrInvalidMethod}
	}
	if !h.Valid() {
		return nil, &ConflictError{Method: m, Pattern: pattern, Reason: "handler is empty", Err: ErrInvalidHandler}
	}
	return r.add(m, pattern, h, nil, mw)
}

// AddSocket registers a WebSocket route on GET.
func (r *Router) AddSocket(pattern string, sock handler.Socket, mw ...handler.Middleware) (*RouteEntry, error) {
	return r.add(http.MethodGet, pattern, handler.Handler{}, &sock, mw)
}

func (r *Router) add(method, pattern string, h handler.Handler, sock *handler.Socket, mw []handler.Middleware) (*RouteEntry, error) {
	p, err := parsePattern(method, pattern)
	if err != nil {
		return nil, err
	}
	if err := checkMiddleware(method, pattern, mw); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry := &RouteEntry{
		Key:        RouteKey{Method: method, Pattern: p.Key()},
		Method:     method,
		Pattern:    p,
		Handler:    h,
		Socket:     sock,
		Middleware: slices.Clone(mw),
		seq:        r.seq,
		params:     p.ParamNames(),
	}
	r.routes[entry.Key] = entry
	return entry, nil
}

// Use appends global middleware.
func (r *Router) Use(mw ...handler.Middleware) error {
	if err := checkMiddleware("*", "*", mw); err != nil {
		return err
	}
	r.mu.Lock()
	r.global = append(r.global, mw...)
	r.mu.Unlock()
	return nil
}

// UseRoute appends middleware scoped to one route. The route does not have
// to exist yet, and the middleware survives re-registration of the route.
func (r *Router) UseRoute(method, pattern string, mw ...handler.Middleware) error {
	m, ok := handler.NormalizeMethod(method)
	if !ok {
		return &ConflictError{Method: method, Pattern: pattern, Reason: "unknown method", Err: ErrInvalidMethod}
	}
	p, err := parsePattern(m, pattern)
	if err != nil {
		return err
	}
	if err := checkMiddleware(m, pattern, mw); err != nil {
		return err
	}
	key := RouteKey{Method: m, Pattern: p.Key()}

	r.mu.Lock()
	r.scoped[key] = append(r.scoped[key], mw...)
	r.mu.Unlock()
	return nil
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.routes)
}

// Snapshot freezes the current registrations into an immutable Table.
func (r *Router) Snapshot() *Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &Table{trees: make(map[string]*node)}
	entries := make([]*RouteEntry, 0, len(r.routes))
	for _, e := range r.routes {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *RouteEntry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	for _, e := range entries {
		frozen := *e
		routeMW := append(slices.Clone(e.Middleware), r.scoped[e.Key]...)
		frozen.before = nil
		frozen.after = nil
		for _, m := range r.global {
			if m.Phase == handler.PhaseBefore {
				frozen.before = append(frozen.before, m)
			}
		}
		for _, m := range routeMW {
			if m.Phase == handler.PhaseBefore {
				frozen.before = append(frozen.before, m)
			} else {
				frozen.after = append(frozen.after, m)
			}
		}
		for _, m := range r.global {
			if m.Phase == handler.PhaseAfter {
				frozen.after = append(frozen.after, m)
			}
		}

		root := t.trees[e.Method]
		if root == nil {
			root = &node{}
			t.trees[e.Method] = root
		}
		root.insert(e.Pattern, &frozen)
		t.entries = append(t.entries, &frozen)
	}
	return t
}

func checkMiddleware(method, pattern string, mw []handler.Middleware) error {
	for i, m := range mw {
		if !m.Call.Valid() {
			return &ConflictError{
				Method:  method,
				Pattern: pattern,
				Reason:  "middleware " + strconv.Itoa(i) + " is empty",
				Err:     ErrInvalidHandler,
			}
		}
	}
	return nil
}
