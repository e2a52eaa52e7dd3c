package handler

import (
	"context"
	"errors"
)

// ErrNilCallable is returned when an empty Callable is invoked.
var ErrNilCallable = errors.New("handler: nil callable")

// Callable is a piece of user code together with its scheduling kind.
//
// Sync and offloaded callables share the blocking form; async callables
// return a Future. The zero value is invalid.
type Callable[In, Out any] struct {
	kind     Kind
	blocking func(context.Context, In) (Out, error)
	async    func(context.Context, In) *Future[Out]
}

// NewSync wraps fn as a callable that runs on the connection goroutine.
func NewSync[In, Out any](fn func(context.Context, In) (Out, error)) Callable[In, Out] {
	return Callable[In, Out]{kind: KindSync, blocking: fn}
}

// NewOffload wraps fn as a callable that runs on the offload pool.
func NewOffload[In, Out any](fn func(context.Context, In) (Out, error)) Callable[In, Out] {
	return Callable[In, Out]{kind: KindOffload, blocking: fn}
}

// NewAsync wraps fn as a callable that starts work and returns a Future.
func NewAsync[In, Out any](fn func(context.Context, In) *Future[Out]) Callable[In, Out] {
	return Callable[In, Out]{kind: KindAsync, async: fn}
}

// Kind returns the scheduling kind.
func (c Callable[In, Out]) Kind() Kind { return c.kind }

// Valid reports whether the callable has code attached.
func (c Callable[In, Out]) Valid() bool {
	if c.kind == KindAsync {
		return c.async != nil
	}
	return c.blocking != nil
}

// Offloaded returns a copy of a sync callable that runs on the offload pool.
// Async callables are returned unchanged.
func (c Callable[In, Out]) Offloaded() Callable[In, Out] {
	if c.kind == KindSync {
		c.kind = KindOffload
	}
	return c
}

// Call invokes a sync or offloaded callable on the current goroutine.
func (c Callable[In, Out]) Call(ctx context.Context, in In) (Out, error) {
	if c.blocking == nil {
		var zero Out
		return zero, ErrNilCallable
	}
	return c.blocking(ctx, in)
}

// Start invokes an async callable and returns its Future.
func (c Callable[In, Out]) Start(ctx context.Context, in In) *Future[Out] {
	if c.async == nil {
		var zero Out
		return Ready(zero, ErrNilCallable)
	}
	f := c.async(ctx, in)
	if f == nil {
		var zero Out
		return Ready(zero, errors.New("handler: async callable returned nil future"))
	}
	return f
}
