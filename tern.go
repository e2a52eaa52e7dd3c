// Package tern is a web runtime: a shared listening socket served by N
// workers, a router with before/after middleware, sync, async and
// offloaded handlers, and WebSocket routes.
//
//	app := tern.New(tern.DefaultConfig())
//	app.Get("/", tern.Sync(func(ctx context.Context, req *tern.Request) (*tern.Response, error) {
//	    return tern.Text(200, "Hello, world!"), nil
//	}))
//	app.WebSocket("/chat", tern.Socket{OnMessage: echo})
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// The App is a thin layer over pkg/router, pkg/server and pkg/ws; use those
// directly for finer control.
package tern

import (
	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/server"
)

// Version is the runtime version, overridden at build time with
// -ldflags "-X github.com/tern-dev/tern.Version=...".
var Version = "0.1.0-dev"

// Config configures an App.
type Config = server.Config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config { return server.DefaultConfig() }

type (
	Request     = handler.Request
	Response    = handler.Response
	Handler     = handler.Handler
	Middleware  = handler.Middleware
	Outcome     = handler.Outcome
	Identity    = handler.Identity
	Socket      = handler.Socket
	SocketEvent = handler.SocketEvent
	Message     = handler.Message
	ConnID      = handler.ConnID
)

// Handler constructors.
var (
	Sync    = handler.Sync
	Offload = handler.Offload
	Async   = handler.Async
)

// Middleware constructors.
var (
	Before = handler.Before
	After  = handler.After
)

// Response helpers.
var (
	Text     = handler.Text
	HTML     = handler.HTML
	JSON     = handler.JSON
	Redirect = handler.Redirect
)
