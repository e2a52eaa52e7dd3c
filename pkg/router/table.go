package router

import (
	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/routepath"
)

// Table is an immutable route table produced by Router.Snapshot.
type Table struct {
	trees   map[string]*node
	entries []*RouteEntry
}

// Resolution is the result of resolving a request.
type Resolution struct {
	Entry  *RouteEntry
	Params map[string]string

	// Before is global before middleware followed by route before middleware.
	Before []handler.Middleware

	// After is route after middleware followed by global after middleware.
	After []handler.Middleware
}

// Resolve finds the route for method and a canonical path.
func (t *Table) Resolve(method, path string) (*Resolution, error) {
	if t == nil {
		return nil, ErrNotFound
	}
	root := t.trees[method]
	if root == nil {
		return nil, ErrNotFound
	}

	entry, values := root.match(routepath.Split(path), make([]string, 0, 4))
	if entry == nil {
		return nil, ErrNotFound
	}

	var params map[string]string
	if len(entry.params) > 0 {
		params = make(map[string]string, len(entry.params))
		for i, name := range entry.params {
			params[name] = values[i]
		}
	}

	return &Resolution{
		Entry:  entry,
		Params: params,
		Before: entry.before,
		After:  entry.after,
	}, nil
}

// RouteInfo describes a route for listings.
type RouteInfo struct {
	Method     string `json:"method"`
	Pattern    string `json:"pattern"`
	Kind       string `json:"kind"`
	WebSocket  bool   `json:"websocket,omitempty"`
	Middleware int    `json:"middleware"`
}

// Routes lists the table's routes in registration order.
func (t *Table) Routes() []RouteInfo {
	if t == nil {
		return nil
	}
	out := make([]RouteInfo, 0, len(t.entries))
	for _, e := range t.entries {
		info := RouteInfo{
			Method:     e.Method,
			Pattern:    e.Pattern.String(),
			WebSocket:  e.IsSocket(),
			Middleware: len(e.before) + len(e.after),
		}
		if !e.IsSocket() {
			info.Kind = e.Kind().String()
		}
		out = append(out, info)
	}
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
