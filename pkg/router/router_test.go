package router

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/tern-dev/tern/pkg/handler"
)

func textHandler(body string) handler.Handler {
	return handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, body), nil
	})
}

func mustAdd(t *testing.T, r *Router, method, pattern string, h handler.Handler, mw ...handler.Middleware) *RouteEntry {
	t.Helper()
	e, err := r.Add(method, pattern, h, mw...)
	if err != nil {
		t.Fatalf("Add(%s %s) error = %v", method, pattern, err)
	}
	return e
}

func TestResolve(t *testing.T) {
	r := New()
	mustAdd(t, r, "GET", "/", textHandler("root"))
	mustAdd(t, r, "GET", "/users", textHandler("list"))
	mustAdd(t, r, "GET", "/users/:id", textHandler("show"))
	mustAdd(t, r, "GET", "/users/:id/posts/:post", textHandler("post"))
	mustAdd(t, r, "GET", "/files/*path", textHandler("file"))
	mustAdd(t, r, "POST", "/users", textHandler("create"))
	table := r.Snapshot()

	tests := []struct {
		method     string
		path       string
		wantRoute  string
		wantParams map[string]string
	}{
		{"GET", "/", "/", nil},
		{"GET", "/users", "/users", nil},
		{"GET", "/users/42", "/users/:id", map[string]string{"id": "42"}},
		{"GET", "/users/42/posts/7", "/users/:id/posts/:post", map[string]string{"id": "42", "post": "7"}},
		{"GET", "/files/a/b/c.txt", "/files/*path", map[string]string{"path": "a/b/c.txt"}},
		{"POST", "/users", "/users", nil},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res, err := table.Resolve(tt.method, tt.path)
			if err != nil {
				t.Fatalf("Resolve error = %v", err)
			}
			if got := res.Entry.Pattern.String(); got != tt.wantRoute {
				t.Errorf("route = %q, want %q", got, tt.wantRoute)
			}
			if len(res.Params) != len(tt.wantParams) {
				t.Fatalf("params = %v, want %v", res.Params, tt.wantParams)
			}
			for k, v := range tt.wantParams {
				if res.Params[k] != v {
					t.Errorf("param %s = %q, want %q", k, res.Params[k], v)
				}
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	r := New()
	mustAdd(t, r, "GET", "/users/:id", textHandler("show"))
	mustAdd(t, r, "GET", "/files/*path", textHandler("file"))
	table := r.Snapshot()

	tests := []struct{ method, path string }{
		{"GET", "/"},
		{"GET", "/users"},
		{"GET", "/users/1/extra"},
		{"GET", "/files"},
		{"POST", "/users/1"},
		{"DELETE", "/files/a"},
	}
	for _, tt := range tests {
		if _, err := table.Resolve(tt.method, tt.path); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%s %s) error = %v, want ErrNotFound", tt.method, tt.path, err)
		}
	}

	var nilTable *Table
	if _, err := nilTable.Resolve("GET", "/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("nil table Resolve error = %v", err)
	}
}

func TestLiteralBeatsParameter(t *testing.T) {
	// Registration order must not matter.
	for _, literalFirst := range []bool{true, false} {
		r := New()
		if literalFirst {
			mustAdd(t, r, "GET", "/users/profile", textHandler("profile"))
			mustAdd(t, r, "GET", "/users/:id", textHandler("show"))
		} else {
			mustAdd(t, r, "GET", "/users/:id", textHandler("show"))
			mustAdd(t, r, "GET", "/users/profile", textHandler("profile"))
		}
		table := r.Snapshot()

		res, err := table.Resolve("GET", "/users/profile")
		if err != nil {
			t.Fatalf("Resolve error = %v", err)
		}
		if res.Entry.Pattern.String() != "/users/profile" {
			t.Errorf("literalFirst=%v: resolved %q, want /users/profile", literalFirst, res.Entry.Pattern)
		}

		res, err = table.Resolve("GET", "/users/7")
		if err != nil || res.Entry.Pattern.String() != "/users/:id" {
			t.Errorf("literalFirst=%v: /users/7 resolved to %v, %v", literalFirst, res, err)
		}
	}
}

func TestParameterWildcardTieGoesToFirstRegistered(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		intro    string
	}{
		{"wildcard first", []string{"/docs/*rest", "/docs/:page"}, "/docs/*rest"},
		{"parameter first", []string{"/docs/:page", "/docs/*rest"}, "/docs/:page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			for _, p := range tt.patterns {
				mustAdd(t, r, "GET", p, textHandler(p))
			}
			table := r.Snapshot()

			res, err := table.Resolve("GET", "/docs/intro")
			if err != nil || res.Entry.Pattern.String() != tt.intro {
				t.Fatalf("/docs/intro resolved to %v, %v; want %s", res, err, tt.intro)
			}
			res, err = table.Resolve("GET", "/docs/guide/intro")
			if err != nil || res.Entry.Pattern.String() != "/docs/*rest" {
				t.Fatalf("/docs/guide/intro resolved to %v, %v", res, err)
			}
		})
	}
}

func TestReRegistrationOverwrites(t *testing.T) {
	r := New()
	first := mustAdd(t, r, "GET", "/users/:id", textHandler("first"))
	second := mustAdd(t, r, "GET", "/users/:uid", textHandler("second"))

	if first.Key != second.Key {
		t.Fatalf("keys differ: %v vs %v", first.Key, second.Key)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	table := r.Snapshot()
	if table.Len() != 1 {
		t.Fatalf("table.Len() = %d, want 1", table.Len())
	}
	res, err := table.Resolve("GET", "/users/9")
	if err != nil {
		t.Fatal(err)
	}
	out, err := res.Entry.Handler.Call(context.Background(), &handler.Request{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Body) != "second" {
		t.Errorf("body = %q, want second", out.Body)
	}
	if res.Params["uid"] != "9" {
		t.Errorf("params = %v, want uid=9", res.Params)
	}
}

func TestAddRejects(t *testing.T) {
	r := New()

	_, err := r.Add("BREW", "/coffee", textHandler("x"))
	if !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("unknown method error = %v", err)
	}
	_, err = r.Add("GET", "/x", handler.Handler{})
	if !errors.Is(err, ErrInvalidHandler) {
		t.Errorf("empty handler error = %v", err)
	}
	_, err = r.Add("GET", "/a/*rest/b", textHandler("x"))
	if !errors.Is(err, ErrMalformedPattern) {
		t.Errorf("malformed pattern error = %v", err)
	}
	_, err = r.Add("GET", "/x", textHandler("x"), handler.Middleware{})
	if !errors.Is(err, ErrInvalidHandler) {
		t.Errorf("empty middleware error = %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("rejected registrations changed the router: Len() = %d", r.Len())
	}
}

func TestLowercaseMethod(t *testing.T) {
	r := New()
	mustAdd(t, r, "get", "/x", textHandler("x"))
	if _, err := r.Snapshot().Resolve("GET", "/x"); err != nil {
		t.Errorf("Resolve error = %v", err)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	r := New()
	mustAdd(t, r, "GET", "/a", textHandler("a"))
	table := r.Snapshot()

	mustAdd(t, r, "GET", "/b", textHandler("b"))
	if _, err := table.Resolve("GET", "/b"); !errors.Is(err, ErrNotFound) {
		t.Error("route added after Snapshot leaked into the old table")
	}
	if _, err := r.Snapshot().Resolve("GET", "/b"); err != nil {
		t.Errorf("new snapshot missing /b: %v", err)
	}
}

func TestConcurrentResolve(t *testing.T) {
	r := New()
	mustAdd(t, r, "GET", "/users/:id", textHandler("show"))
	table := r.Snapshot()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if _, err := table.Resolve("GET", "/users/1"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSocketRoute(t *testing.T) {
	r := New()
	if _, err := r.AddSocket("/ws/:room", handler.Socket{}); err != nil {
		t.Fatal(err)
	}
	table := r.Snapshot()
	res, err := table.Resolve("GET", "/ws/lobby")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Entry.IsSocket() || res.Params["room"] != "lobby" {
		t.Errorf("entry socket=%v params=%v", res.Entry.IsSocket(), res.Params)
	}

	routes := table.Routes()
	if len(routes) != 1 || !routes[0].WebSocket || routes[0].Kind != "" {
		t.Errorf("Routes() = %+v", routes)
	}
}
