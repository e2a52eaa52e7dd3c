package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/router"
)

func testConfig(workers int) *Config {
	return DefaultConfig().
		WithAddress("127.0.0.1", 0).
		WithWorkers(workers).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func startServer(t *testing.T, cfg *Config, r *router.Router) *Server {
	t.Helper()
	s := New(cfg)
	s.SetRoutes(r.Snapshot())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func baseURL(s *Server) string { return "http://" + s.Addr().String() }

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServeHelloWorld(t *testing.T) {
	r := router.New()
	r.Add(http.MethodGet, "/", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "Hello, world!"), nil
	}))
	r.Add(http.MethodGet, "/users/:id", handler.Offload(func(_ context.Context, req *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "user "+req.Param("id")), nil
	}))
	s := startServer(t, testConfig(2), r)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "Hello, world!"},
		{"/users/42", http.StatusOK, "user 42"},
		{"/users/a/../7", http.StatusOK, "user 7"},
		{"/missing", http.StatusNotFound, "Not Found"},
		{"/a/..%2f..", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, http.DefaultClient, baseURL(s)+tt.path)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", status, tt.wantStatus, body)
			}
			if tt.wantBody != "" && body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestUnwritableStatusAnswers500(t *testing.T) {
	r := router.New()
	r.Add(http.MethodGet, "/bad", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return &handler.Response{Status: 42}, nil
	}))
	r.Add(http.MethodGet, "/bad-err", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return nil, handler.Error(1000, "nope")
	}))
	s := startServer(t, testConfig(1), r)

	for _, path := range []string{"/bad", "/bad-err"} {
		t.Run(path, func(t *testing.T) {
			status, body := get(t, http.DefaultClient, baseURL(s)+path)
			if status != http.StatusInternalServerError || body != "Internal Server Error" {
				t.Errorf("got %d %q, want 500", status, body)
			}
		})
	}
}

func TestWorkersShareConnections(t *testing.T) {
	const workers, conns = 4, 40

	r := router.New()
	r.Add(http.MethodGet, "/worker", handler.Sync(func(ctx context.Context, _ *handler.Request) (*handler.Response, error) {
		id, ok := WorkerID(ctx)
		if !ok {
			return nil, fmt.Errorf("no worker id")
		}
		return handler.Text(http.StatusOK, strconv.Itoa(id)), nil
	}))
	s := startServer(t, testConfig(workers), r)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	var wg sync.WaitGroup
	errs := make(chan error, conns)
	for range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(baseURL(s) + "/worker")
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			id, err := strconv.Atoi(string(body))
			if err != nil || id < 0 || id >= workers {
				errs <- fmt.Errorf("worker id %q", body)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	var total int64
	for _, n := range s.Accepted() {
		total += n
	}
	if total != conns {
		t.Errorf("accepted %d connections, want %d", total, conns)
	}
}

func TestGlobalHeaders(t *testing.T) {
	r := router.New()
	r.Add(http.MethodGet, "/echo", handler.Sync(func(_ context.Context, req *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, req.Header.Get("X-Env")), nil
	}))
	r.Add(http.MethodGet, "/plain", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "plain"), nil
	}))

	cfg := testConfig(1)
	cfg.RequestHeaders = http.Header{"X-Env": {"test"}}
	cfg.ResponseHeaders = http.Header{"Server": {"tern"}}
	cfg.ExcludeResponseHeaders = []string{"/plain"}
	s := startServer(t, cfg, r)

	resp, err := http.Get(baseURL(s) + "/echo")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "test" {
		t.Errorf("request header = %q, want %q", body, "test")
	}
	if got := resp.Header.Get("Server"); got != "tern" {
		t.Errorf("Server header = %q, want %q", got, "tern")
	}

	resp, err = http.Get(baseURL(s) + "/plain")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Server"); got != "" {
		t.Errorf("excluded path got Server header %q", got)
	}
}

func TestSocketRoute(t *testing.T) {
	r := router.New()
	r.AddSocket("/ws", handler.Socket{
		OnMessage: handler.SocketFunc(func(_ context.Context, ev *handler.SocketEvent) ([]handler.Message, error) {
			return []handler.Message{handler.NewText("echo " + ev.Message.Text())}, nil
		}),
	}, handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		if req.QueryValue("token") != "ok" {
			return handler.Respond(handler.Text(http.StatusUnauthorized, "denied")), nil
		}
		return handler.Next(), nil
	}))
	s := startServer(t, testConfig(2), r)

	status, _ := get(t, http.DefaultClient, baseURL(s)+"/ws?token=ok")
	if status != http.StatusUpgradeRequired {
		t.Errorf("plain GET status = %d, want %d", status, http.StatusUpgradeRequired)
	}

	wsURL := "ws://" + s.Addr().String() + "/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("Dial without token succeeded")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Dial without token: resp = %v, err = %v", resp, err)
	}

	c, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=ok", nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer c.Close()

	if err := c.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "echo hi" {
		t.Errorf("reply = %q, want %q", data, "echo hi")
	}
}

func TestShutdownDrainsInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	r := router.New()
	r.Add(http.MethodGet, "/slow", handler.Offload(func(context.Context, *handler.Request) (*handler.Response, error) {
		close(entered)
		<-release
		return handler.Text(http.StatusOK, "done"), nil
	}))
	s := startServer(t, testConfig(2), r)
	url := baseURL(s) + "/slow"

	result := make(chan string, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			result <- err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		result <- string(body)
	}()
	<-entered

	shutdown := make(chan error, 1)
	go func() {
		shutdown <- s.Shutdown(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	if s.Ready() {
		t.Error("Ready() = true during shutdown")
	}
	close(release)

	if got := <-result; got != "done" {
		t.Errorf("in-flight request got %q, want %q", got, "done")
	}
	if err := <-shutdown; err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	client := &http.Client{Timeout: time.Second}
	if _, err := client.Get(url); err == nil {
		t.Error("request after shutdown succeeded")
	}
	if err := s.Start(); err != ErrServerClosed {
		t.Errorf("Start() after Shutdown = %v, want ErrServerClosed", err)
	}
}

func TestShutdownForcesAfterTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{})

	r := router.New()
	r.Add(http.MethodGet, "/stuck", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		close(entered)
		<-release
		return handler.Text(http.StatusOK, "late"), nil
	}))
	s := startServer(t, testConfig(1), r)

	go http.Get(baseURL(s) + "/stuck")
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := s.Shutdown(ctx); err == nil {
		t.Error("Shutdown() error = nil, want deadline error")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Shutdown took %v", elapsed)
	}
}

func TestStartTwice(t *testing.T) {
	s := startServer(t, testConfig(1), router.New())
	if err := s.Start(); err != ErrAlreadyStarted {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestSetRoutesSwapsTable(t *testing.T) {
	s := startServer(t, testConfig(1), router.New())

	status, _ := get(t, http.DefaultClient, baseURL(s)+"/late")
	if status != http.StatusNotFound {
		t.Fatalf("before SetRoutes status = %d", status)
	}

	r := router.New()
	r.Add(http.MethodGet, "/late", handler.Sync(func(context.Context, *handler.Request) (*handler.Response, error) {
		return handler.Text(http.StatusOK, "here"), nil
	}))
	s.SetRoutes(r.Snapshot())

	status, body := get(t, http.DefaultClient, baseURL(s)+"/late")
	if status != http.StatusOK || !strings.Contains(body, "here") {
		t.Errorf("after SetRoutes = %d %q", status, body)
	}
}
