// Package handler defines the contract between the tern core and the code that
// produces responses.
//
// Every piece of user code the core invokes (route handlers, middleware and
// WebSocket callbacks) is a Callable tagged with a Kind that tells the
// execution bridge how to schedule it:
//
//   - KindSync runs to completion on the worker goroutine serving the connection
//   - KindAsync starts work and returns a Future the bridge waits on
//   - KindOffload runs on the bounded offload pool
//
// # Handlers
//
//	h := handler.Sync(func(ctx context.Context, req *handler.Request) (*handler.Response, error) {
//	    return handler.Text(http.StatusOK, "Hello, "+req.Param("name")), nil
//	})
//
// A handler signals failure by returning an error. Errors built with Error carry
// a status override; any other error becomes a 500 response.
//
// # Middleware
//
// Before middleware sees the request and may pass it through, replace it, or
// answer directly:
//
//	auth := handler.Before(func(ctx context.Context, req *handler.Request) (handler.Outcome, error) {
//	    if req.Header.Get("Authorization") == "" {
//	        return handler.Respond(handler.Status(http.StatusUnauthorized)), nil
//	    }
//	    return handler.Next(), nil
//	})
//
// After middleware sees the request and the response produced so far.
//
// # Requests and responses
//
// Request values are never mutated once built. Middleware that needs to change
// a request builds a copy with WithHeader, WithValue, WithBody or WithIdentity.
package handler
