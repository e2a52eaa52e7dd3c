package bridge

import (
	"context"
	"runtime/debug"

	"github.com/tern-dev/tern/pkg/handler"
)

// waiter is a type-erased future.
type waiter struct {
	done   <-chan struct{}
	result func() (any, error)
}

// strategy has one method per handler kind.
type strategy interface {
	runSync(ctx context.Context, call func(context.Context) (any, error)) (any, error)
	runAsync(ctx context.Context, start func(context.Context) waiter) (any, error)
	runOffload(ctx context.Context, call func(context.Context) (any, error)) (any, error)
}

// invoke dispatches c to the strategy matching its kind.
func invoke[In, Out any](ctx context.Context, s strategy, c handler.Callable[In, Out], in In) (Out, error) {
	var (
		v   any
		err error
	)
	switch c.Kind() {
	case handler.KindAsync:
		v, err = s.runAsync(ctx, func(ctx context.Context) waiter {
			f := c.Start(ctx, in)
			return waiter{
				done: f.Done(),
				result: func() (any, error) {
					out, err := f.Result()
					return out, err
				},
			}
		})
	case handler.KindOffload:
		v, err = s.runOffload(ctx, func(ctx context.Context) (any, error) {
			return c.Call(ctx, in)
		})
	default:
		v, err = s.runSync(ctx, func(ctx context.Context) (any, error) {
			return c.Call(ctx, in)
		})
	}
	out, _ := v.(Out)
	return out, err
}

// protect runs call and turns a panic into a *handler.PanicError.
func protect(ctx context.Context, call func(context.Context) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &handler.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return call(ctx)
}

type outcome struct {
	v   any
	err error
}

func (e *Executor) runSync(ctx context.Context, call func(context.Context) (any, error)) (any, error) {
	return protect(ctx, call)
}

func (e *Executor) runAsync(ctx context.Context, start func(context.Context) waiter) (any, error) {
	var w waiter
	if _, err := protect(ctx, func(ctx context.Context) (any, error) {
		w = start(ctx)
		return nil, nil
	}); err != nil {
		return nil, err
	}

	select {
	case <-w.done:
		return w.result()
	case <-ctx.Done():
		// The future keeps running and its result is dropped.
		return nil, ctx.Err()
	}
}

func (e *Executor) runOffload(ctx context.Context, call func(context.Context) (any, error)) (any, error) {
	ch := make(chan outcome, 1)
	err := e.pool.Submit(ctx, func(ctx context.Context) {
		v, err := protect(ctx, call)
		ch <- outcome{v: v, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
