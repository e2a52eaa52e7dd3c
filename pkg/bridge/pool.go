package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of offloaded calls running at once.
//
// Submitted work runs with a context that is not cancelled with the
// submitter's, so a task that has started always runs to completion.
type Pool struct {
	sem      *semaphore.Weighted
	size     int
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	inFlight atomic.Int64
}

// NewPool creates a pool running at most size tasks at once.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// InFlight returns the number of running tasks.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// Submit waits for a free slot and starts fn. If ctx ends while waiting, fn
// never runs and ctx's error is returned.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}

	detached := context.WithoutCancel(ctx)
	p.inFlight.Add(1)
	go func() {
		defer func() {
			p.inFlight.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
		}()
		fn(detached)
	}()
	return nil
}

// Close stops accepting work and waits for running tasks until ctx ends.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
