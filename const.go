package tern

import (
	"context"
	"sync"

	"github.com/tern-dev/tern/pkg/handler"
)

// constCache holds the first successful response of a const route.
type constCache struct {
	mu   sync.Mutex
	resp *handler.Response
}

func (c *constCache) get() *handler.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resp == nil {
		return nil
	}
	return c.resp.Clone()
}

// store keeps resp unless another request stored one first, and returns
// the cached copy.
func (c *constCache) store(resp *handler.Response) *handler.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resp == nil {
		c.resp = resp.Clone()
	}
	return c.resp.Clone()
}

// constHandler wraps h so its first successful response is reused. The
// scheduling kind of h is kept. Streaming responses are not cached.
func constHandler(h Handler) Handler {
	c := &constCache{}

	remember := func(resp *handler.Response, err error) (*handler.Response, error) {
		if err != nil || resp == nil || resp.Stream != nil {
			return resp, err
		}
		return c.store(resp), nil
	}

	switch h.Kind() {
	case handler.KindAsync:
		return handler.Async(func(ctx context.Context, req *handler.Request) *handler.Future[*handler.Response] {
			if resp := c.get(); resp != nil {
				return handler.Ready(resp, nil)
			}
			inner := h.Start(ctx, req)
			return handler.Go(ctx, func(ctx context.Context) (*handler.Response, error) {
				return remember(inner.Await(ctx))
			})
		})
	case handler.KindOffload:
		return handler.Offload(func(ctx context.Context, req *handler.Request) (*handler.Response, error) {
			if resp := c.get(); resp != nil {
				return resp, nil
			}
			return remember(h.Call(ctx, req))
		})
	default:
		return handler.Sync(func(ctx context.Context, req *handler.Request) (*handler.Response, error) {
			if resp := c.get(); resp != nil {
				return resp, nil
			}
			return remember(h.Call(ctx, req))
		})
	}
}
