package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future is the result of asynchronous work.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result blocks until the future completes and returns its value.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Await waits for the result or for ctx to end, whichever comes first.
// The underlying work is not cancelled when ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) complete(v T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
		completed = true
	})
	return completed
}

// Ready returns a future that is already complete.
func Ready[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(v, err)
	return f
}

// Go runs fn on a new goroutine and returns its future. A panic in fn
// completes the future with a *PanicError.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.complete(zero, &PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn(ctx)
		f.complete(v, err)
	}()
	return f
}

// Promise is a future completed by hand, for callers that bridge their own
// event loop or callback API into the core.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise creates an uncompleted promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: newFuture[T]()}
}

// Future returns the future observed by the core.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// Resolve completes the promise with v. It reports false if the promise was
// already completed.
func (p *Promise[T]) Resolve(v T) bool { return p.f.complete(v, nil) }

// Reject completes the promise with err.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.f.complete(zero, err)
}

// PanicError records a panic recovered from user code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler: panic: %v", e.Value)
}
