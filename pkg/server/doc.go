// Package server runs a route table on a shared listening socket.
//
// A Server binds one socket through pkg/socket and starts Config.Workers
// accept loops on duplicates of its descriptor, each an http.Server. Every
// request is canonicalized by pkg/wire, resolved against the published
// router.Table and executed by the pkg/bridge Executor. Socket routes are
// upgraded and handed to the pkg/ws Manager.
//
// # Lifecycle
//
//	srv := server.New(server.DefaultConfig().WithAddress("0.0.0.0", 8080))
//	srv.SetRoutes(r.Snapshot())
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run serves until SIGINT or SIGTERM. Shutdown stops accepting, waits for
// in-flight requests, closes WebSocket connections with code 1001 and drains
// the offload pool. Whatever remains after Config.ShutdownTimeout is closed
// forcibly.
//
// # Route Updates
//
// SetRoutes swaps the table atomically. A request resolves against one
// table for its whole lifetime.
//
// # Observability
//
// Collectors are registered on Config.Registry and served, together with
// health and debug endpoints, by AdminHandler. Config.Admin.Address starts a
// separate listener for it.
package server
