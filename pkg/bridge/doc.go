// Package bridge invokes handler chains.
//
// The Executor walks a resolved route: global before middleware, route before
// middleware, the handler, route after middleware and global after
// middleware. Each callable is dispatched by kind:
//
//   - sync callables run on the caller's goroutine
//   - async callables are started and their Future is awaited
//   - offloaded callables run on the Pool, a semaphore-bounded set of
//     goroutines
//
// Errors and panics never escape. They become a *HandlerError, which ends the
// before stages and skips the handler, produces an error response, and still
// lets after middleware see that response.
//
// If the request context ends while an async or offloaded call is pending,
// Execute returns the context error immediately. The pending call keeps
// running and its result is discarded.
package bridge
