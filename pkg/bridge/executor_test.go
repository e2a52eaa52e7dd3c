package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/router"
)

// recorder collects the order in which stages ran.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func before(rec *recorder, name string) handler.Middleware {
	return handler.Before(func(context.Context, *handler.Request) (handler.Outcome, error) {
		rec.add(name)
		return handler.Next(), nil
	}).Named(name)
}

func after(rec *recorder, name string) handler.Middleware {
	return handler.After(func(_ context.Context, _ *handler.Request, res *handler.Response) (*handler.Response, error) {
		rec.add(name)
		return res.WithHeader("X-"+name, "1"), nil
	}).Named(name)
}

func resolve(t *testing.T, r *router.Router, method, path string) *router.Resolution {
	t.Helper()
	res, err := r.Snapshot().Resolve(method, path)
	if err != nil {
		t.Fatalf("Resolve(%s %s) error = %v", method, path, err)
	}
	return res
}

func newRequest(method, path string) *handler.Request {
	return &handler.Request{Method: method, Path: path, Header: make(http.Header)}
}

func TestExecuteHello(t *testing.T) {
	r := router.New()
	_, err := r.Add("GET", "/hello/:name", handler.Sync(func(_ context.Context, req *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "Hello, "+req.Param("name")), nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	e := New()
	res, err := e.Execute(context.Background(), resolve(t, r, "GET", "/hello/world"), newRequest("GET", "/hello/world"))
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if res.Status != http.StatusOK || string(res.Body) != "Hello, world" {
		t.Errorf("response = %d %q", res.Status, res.Body)
	}

	if _, err := r.Snapshot().Resolve("POST", "/hello/world"); !errors.Is(err, router.ErrNotFound) {
		t.Errorf("POST resolve error = %v, want ErrNotFound", err)
	}
	if nf := e.NotFound(newRequest("POST", "/hello/world")); nf.Status != http.StatusNotFound {
		t.Errorf("NotFound status = %d", nf.Status)
	}
}

func TestExecuteOrder(t *testing.T) {
	rec := &recorder{}
	r := router.New()
	if err := r.Use(before(rec, "M1"), after(rec, "M4")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Add("GET", "/x", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		rec.add("H")
		return handler.Text(http.StatusOK, "ok"), nil
	}), before(rec, "M2"), after(rec, "M3"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := New().Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x"))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"M1", "M2", "H", "M3", "M4"}
	got := rec.get()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if res.Header.Get("X-M3") != "1" || res.Header.Get("X-M4") != "1" {
		t.Errorf("after middleware headers missing: %v", res.Header)
	}
}

func TestExecuteOrderAcrossKinds(t *testing.T) {
	rec := &recorder{}
	r := router.New()

	asyncBefore := handler.BeforeAsync(func(ctx context.Context, _ *handler.Request) *handler.Future[handler.Outcome] {
		return handler.Go(ctx, func(context.Context) (handler.Outcome, error) {
			time.Sleep(5 * time.Millisecond)
			rec.add("M1")
			return handler.Next(), nil
		})
	})
	if err := r.Use(asyncBefore, after(rec, "M4").Offloaded()); err != nil {
		t.Fatal(err)
	}
	_, err := r.Add("GET", "/x", handler.Offload(func(context.Context, *handler.Request) (*handler.Response, error) {
		rec.add("H")
		return handler.Text(http.StatusOK, "ok"), nil
	}), before(rec, "M2").Offloaded(), after(rec, "M3"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := New(WithPool(NewPool(2))).Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x")); err != nil {
		t.Fatal(err)
	}
	got := rec.get()
	want := []string{"M1", "M2", "H", "M3", "M4"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBeforeShortCircuit(t *testing.T) {
	tests := []struct {
		name      string
		outcome   handler.Outcome
		wantAfter bool
	}{
		{"respond runs after middleware", handler.Respond(handler.Text(http.StatusForbidden, "no")), true},
		{"halt skips after middleware", handler.Halt(handler.Text(http.StatusForbidden, "no")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			var handlerRan atomic.Bool
			r := router.New()
			gate := handler.Before(func(context.Context, *handler.Request) (handler.Outcome, error) {
				rec.add("gate")
				return tt.outcome, nil
			})
			_, err := r.Add("GET", "/x", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				handlerRan.Store(true)
				return handler.Text(http.StatusOK, "ok"), nil
			}), gate, before(rec, "later"), after(rec, "A"))
			if err != nil {
				t.Fatal(err)
			}

			res, err := New().Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x"))
			if err != nil {
				t.Fatal(err)
			}
			if handlerRan.Load() {
				t.Error("handler ran after short-circuit")
			}
			if res.Status != http.StatusForbidden {
				t.Errorf("status = %d, want 403", res.Status)
			}
			steps := rec.get()
			for _, s := range steps {
				if s == "later" {
					t.Error("remaining before middleware ran after short-circuit")
				}
			}
			ranAfter := res.Header.Get("X-A") == "1"
			if ranAfter != tt.wantAfter {
				t.Errorf("after middleware ran = %v, want %v (steps %v)", ranAfter, tt.wantAfter, steps)
			}
		})
	}
}

func TestBeforeReplacesRequest(t *testing.T) {
	r := router.New()
	tag := handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		return handler.Replace(req.WithHeader("X-User", "ada")), nil
	})
	_, err := r.Add("GET", "/me", handler.Sync(func(_ context.Context, req *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, req.Header.Get("X-User")), nil
	}), tag)
	if err != nil {
		t.Fatal(err)
	}

	orig := newRequest("GET", "/me")
	res, err := New().Execute(context.Background(), resolve(t, r, "GET", "/me"), orig)
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Body) != "ada" {
		t.Errorf("body = %q, want ada", res.Body)
	}
	if orig.Header.Get("X-User") != "" {
		t.Error("original request was mutated")
	}
}

func TestHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		h          handler.Handler
		wantStatus int
		wantBody   string
		wantPanic  bool
	}{
		{
			name: "plain error",
			h: handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				return nil, errors.New("db exploded")
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
		},
		{
			name: "status override",
			h: handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				return nil, handler.Error(http.StatusBadRequest, "name required")
			}),
			wantStatus: http.StatusBadRequest,
			wantBody:   "name required",
		},
		{
			name: "panic",
			h: handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				panic("kaboom")
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			wantPanic:  true,
		},
		{
			name: "offloaded panic",
			h: handler.Offload(func(context.Context, *handler.Request) (*handler.Response, error) {
				panic("kaboom")
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
			wantPanic:  true,
		},
		{
			name: "async error",
			h: handler.Async(func(ctx context.Context, _ *handler.Request) *handler.Future[*handler.Response] {
				return handler.Go(ctx, func(context.Context) (*handler.Response, error) {
					return nil, handler.Error(http.StatusConflict, "taken")
				})
			}),
			wantStatus: http.StatusConflict,
			wantBody:   "taken",
		},
		{
			name: "unwritable status",
			h: handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				return &handler.Response{Status: 42}, nil
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
		},
		{
			name: "override out of range",
			h: handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				return nil, handler.Error(1000, "nope")
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
		},
		{
			name: "nil response",
			h: handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
				return nil, nil
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := router.New()
			if _, err := r.Add("GET", "/x", tt.h, after(rec, "A")); err != nil {
				t.Fatal(err)
			}

			var caught *HandlerError
			e := New(WithErrorHook(func(_ context.Context, he *HandlerError) { caught = he }))
			res, err := e.Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x"))
			if err != nil {
				t.Fatalf("Execute error = %v", err)
			}
			if res.Status != tt.wantStatus || string(res.Body) != tt.wantBody {
				t.Errorf("response = %d %q, want %d %q", res.Status, res.Body, tt.wantStatus, tt.wantBody)
			}
			if res.Header.Get("X-A") != "1" {
				t.Error("after middleware did not run on the error response")
			}
			if caught == nil {
				t.Fatal("error hook not called")
			}
			if caught.Stage != StageHandler {
				t.Errorf("Stage = %q", caught.Stage)
			}
			if (caught.Panic != nil) != tt.wantPanic {
				t.Errorf("Panic = %v, wantPanic %v", caught.Panic, tt.wantPanic)
			}
		})
	}
}

func TestUnwritableStatusFromMiddleware(t *testing.T) {
	ok := handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "ok"), nil
	})
	tests := []struct {
		name  string
		mw    handler.Middleware
		stage Stage
	}{
		{
			name: "before",
			mw: handler.Before(func(context.Context, *handler.Request) (handler.Outcome, error) {
				return handler.Respond(&handler.Response{Status: 7}), nil
			}).Named("short"),
			stage: StageBefore,
		},
		{
			name: "after",
			mw: handler.After(func(context.Context, *handler.Request, *handler.Response) (*handler.Response, error) {
				return &handler.Response{Status: 1200}, nil
			}).Named("rewrite"),
			stage: StageAfter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := router.New()
			if _, err := r.Add("GET", "/x", ok, tt.mw); err != nil {
				t.Fatal(err)
			}
			var caught *HandlerError
			e := New(WithErrorHook(func(_ context.Context, he *HandlerError) { caught = he }))
			res, err := e.Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x"))
			if err != nil {
				t.Fatalf("Execute error = %v", err)
			}
			if res.Status != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", res.Status)
			}
			if caught == nil || caught.Stage != tt.stage || !errors.Is(caught, ErrInvalidStatus) {
				t.Errorf("caught = %v, want %s stage ErrInvalidStatus", caught, tt.stage)
			}
		})
	}
}

func TestBeforeErrorSkipsHandler(t *testing.T) {
	rec := &recorder{}
	var handlerRan atomic.Bool
	r := router.New()
	failing := handler.Before(func(context.Context, *handler.Request) (handler.Outcome, error) {
		return handler.Outcome{}, errors.New("broken")
	}).Named("failing")
	_, err := r.Add("GET", "/x", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		handlerRan.Store(true)
		return handler.Text(http.StatusOK, "ok"), nil
	}), failing, after(rec, "A"))
	if err != nil {
		t.Fatal(err)
	}

	var caught *HandlerError
	e := New(WithExposeErrors(true), WithErrorHook(func(_ context.Context, he *HandlerError) { caught = he }))
	res, err := e.Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x"))
	if err != nil {
		t.Fatal(err)
	}
	if handlerRan.Load() {
		t.Error("handler ran after before-middleware failure")
	}
	if res.Status != http.StatusInternalServerError || string(res.Body) != "broken" {
		t.Errorf("response = %d %q", res.Status, res.Body)
	}
	if res.Header.Get("X-A") != "1" {
		t.Error("after middleware skipped")
	}
	if caught == nil || caught.Stage != StageBefore || caught.Name != "failing" {
		t.Errorf("caught = %+v", caught)
	}
}

func TestAfterErrorReplacesResponse(t *testing.T) {
	r := router.New()
	broken := handler.After(func(context.Context, *handler.Request, *handler.Response) (*handler.Response, error) {
		panic("after broke")
	})
	marker := handler.After(func(_ context.Context, _ *handler.Request, res *handler.Response) (*handler.Response, error) {
		return res.WithHeader("X-Seen", "1"), nil
	})
	_, err := r.Add("GET", "/x", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "ok"), nil
	}), broken, marker)
	if err != nil {
		t.Fatal(err)
	}

	res, err := New().Execute(context.Background(), resolve(t, r, "GET", "/x"), newRequest("GET", "/x"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", res.Status)
	}
	if res.Header.Get("X-Seen") != "1" {
		t.Error("later after middleware did not run")
	}
}

func TestCancelledOffloadRunsToCompletion(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	r := router.New()
	_, err := r.Add("GET", "/slow", handler.Offload(func(ctx context.Context, _ *handler.Request) (*handler.Response, error) {
		<-release
		if ctx.Err() != nil {
			t.Error("offloaded task saw a cancelled context")
		}
		close(finished)
		return handler.Text(http.StatusOK, "late"), nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	pool := NewPool(1)
	e := New(WithPool(pool))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(ctx, resolve(t, r, "GET", "/slow"), newRequest("GET", "/slow"))
		done <- err
	}()

	// Wait for the task to occupy the pool before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for pool.InFlight() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task never started")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancel")
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("detached task did not finish")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	if err := pool.Close(closeCtx); err != nil {
		t.Fatalf("pool.Close error = %v", err)
	}
	if pool.InFlight() != 0 {
		t.Errorf("InFlight = %d after Close", pool.InFlight())
	}
}

func TestCancelledAsyncReturns(t *testing.T) {
	p := handler.NewPromise[*handler.Response]()
	r := router.New()
	_, err := r.Add("GET", "/wait", handler.Async(func(context.Context, *handler.Request) *handler.Future[*handler.Response] {
		return p.Future()
	}))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = New().Execute(ctx, resolve(t, r, "GET", "/wait"), newRequest("GET", "/wait"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Execute error = %v, want deadline exceeded", err)
	}
	// Late completion must not block or panic.
	p.Resolve(handler.Text(http.StatusOK, "late"))
}

func TestInvokeSocket(t *testing.T) {
	e := New()
	echo := handler.SocketFunc(func(_ context.Context, ev *handler.SocketEvent) ([]handler.Message, error) {
		return []handler.Message{ev.Message}, nil
	})
	msgs, err := e.InvokeSocket(context.Background(), "/ws", echo, &handler.SocketEvent{Message: handler.NewText("hi")})
	if err != nil || len(msgs) != 1 || msgs[0].Text() != "hi" {
		t.Fatalf("InvokeSocket = %v, %v", msgs, err)
	}

	if msgs, err := e.InvokeSocket(context.Background(), "/ws", handler.SocketHandler{}, &handler.SocketEvent{}); err != nil || msgs != nil {
		t.Errorf("unset callback = %v, %v", msgs, err)
	}

	boom := handler.SocketFunc(func(context.Context, *handler.SocketEvent) ([]handler.Message, error) {
		panic("socket boom")
	})
	_, err = e.InvokeSocket(context.Background(), "/ws", boom, &handler.SocketEvent{})
	var he *HandlerError
	if !errors.As(err, &he) || he.Stage != StageSocket || he.Panic == nil {
		t.Errorf("InvokeSocket panic error = %v", err)
	}
}

func TestAdmit(t *testing.T) {
	r := router.New()
	deny := handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		if req.Header.Get("Authorization") == "" {
			return handler.Respond(handler.Status(http.StatusUnauthorized)), nil
		}
		return handler.Replace(req.WithHeader("X-User", "ada")), nil
	})
	if _, err := r.AddSocket("/ws/:room", handler.Socket{}, deny); err != nil {
		t.Fatal(err)
	}
	res := resolve(t, r, "GET", "/ws/lobby")
	e := New()

	_, resp, err := e.Admit(context.Background(), res, newRequest("GET", "/ws/lobby"))
	if err != nil {
		t.Fatal(err)
	}
	if resp == nil || resp.Status != http.StatusUnauthorized {
		t.Fatalf("Admit without credentials = %+v", resp)
	}

	req := newRequest("GET", "/ws/lobby")
	req.Header.Set("Authorization", "Bearer x")
	admitted, resp, err := e.Admit(context.Background(), res, req)
	if err != nil || resp != nil {
		t.Fatalf("Admit = %v, %v", resp, err)
	}
	if admitted.Header.Get("X-User") != "ada" || admitted.Param("room") != "lobby" {
		t.Errorf("admitted request header=%q room=%q", admitted.Header.Get("X-User"), admitted.Param("room"))
	}
}
