package handler

import "context"

// Handler is a route handler.
type Handler = Callable[*Request, *Response]

// Sync returns a handler that runs on the connection goroutine.
func Sync(fn func(context.Context, *Request) (*Response, error)) Handler {
	return NewSync(fn)
}

// Offload returns a handler that runs on the offload pool.
func Offload(fn func(context.Context, *Request) (*Response, error)) Handler {
	return NewOffload(fn)
}

// Async returns a handler whose work completes through a Future.
func Async(fn func(context.Context, *Request) *Future[*Response]) Handler {
	return NewAsync(fn)
}

// Phase says whether middleware runs before or after the handler.
type Phase uint8

const (
	PhaseBefore Phase = iota
	PhaseAfter
)

func (p Phase) String() string {
	if p == PhaseAfter {
		return "after"
	}
	return "before"
}

// Exchange is the input of a middleware call. Response is nil for before
// middleware.
type Exchange struct {
	Request  *Request
	Response *Response
}

// Outcome is what a middleware call decides.
//
// A before stage with a nil Response passes Request (or the original request
// when Request is nil) down the chain. A non-nil Response ends the before
// stages and skips the handler; the after stages still run unless Final is
// set. For after stages a non-nil Response replaces the current response and
// Final skips the remaining after stages.
type Outcome struct {
	Request  *Request
	Response *Response
	Final    bool
}

// Next passes the request through unchanged.
func Next() Outcome { return Outcome{} }

// Replace continues the chain with req.
func Replace(req *Request) Outcome { return Outcome{Request: req} }

// Respond short-circuits with res; after middleware still runs.
func Respond(res *Response) Outcome { return Outcome{Response: res} }

// Halt short-circuits with res and skips after middleware.
func Halt(res *Response) Outcome { return Outcome{Response: res, Final: true} }

// Middleware is a phase-tagged callable.
type Middleware struct {
	Name  string
	Phase Phase
	Call  Callable[*Exchange, Outcome]
}

// Before builds sync before middleware.
func Before(fn func(context.Context, *Request) (Outcome, error)) Middleware {
	return Middleware{
		Phase: PhaseBefore,
		Call: NewSync(func(ctx context.Context, ex *Exchange) (Outcome, error) {
			return fn(ctx, ex.Request)
		}),
	}
}

// BeforeAsync builds before middleware backed by a Future.
func BeforeAsync(fn func(context.Context, *Request) *Future[Outcome]) Middleware {
	return Middleware{
		Phase: PhaseBefore,
		Call: NewAsync(func(ctx context.Context, ex *Exchange) *Future[Outcome] {
			return fn(ctx, ex.Request)
		}),
	}
}

// After builds sync after middleware. Returning a nil response keeps the
// current one.
func After(fn func(context.Context, *Request, *Response) (*Response, error)) Middleware {
	return Middleware{
		Phase: PhaseAfter,
		Call: NewSync(func(ctx context.Context, ex *Exchange) (Outcome, error) {
			res, err := fn(ctx, ex.Request, ex.Response)
			return Outcome{Response: res}, err
		}),
	}
}

// AfterAsync builds after middleware backed by a Future.
func AfterAsync(fn func(context.Context, *Request, *Response) *Future[*Response]) Middleware {
	return Middleware{
		Phase: PhaseAfter,
		Call: NewAsync(func(ctx context.Context, ex *Exchange) *Future[Outcome] {
			inner := fn(ctx, ex.Request, ex.Response)
			if inner == nil {
				return Ready(Outcome{}, nil)
			}
			return Go(ctx, func(context.Context) (Outcome, error) {
				res, err := inner.Result()
				return Outcome{Response: res}, err
			})
		}),
	}
}

// Named returns a copy of m carrying a name for logs and traces.
func (m Middleware) Named(name string) Middleware {
	m.Name = name
	return m
}

// Offloaded returns a copy of m that runs on the offload pool.
func (m Middleware) Offloaded() Middleware {
	m.Call = m.Call.Offloaded()
	return m
}
