package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/router"
)

const tracerName = "github.com/tern-dev/tern/pkg/bridge"

// Executor runs resolved routes against requests.
type Executor struct {
	pool    *Pool
	logger  *slog.Logger
	tracer  trace.Tracer
	expose  bool
	onError func(context.Context, *HandlerError)
}

// Option configures an Executor.
type Option func(*Executor)

// WithPool sets the offload pool. By default the executor owns a pool sized
// to GOMAXPROCS.
func WithPool(p *Pool) Option {
	return func(e *Executor) { e.pool = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracerProvider sets the tracer provider. Default: otel global.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(tracerName) }
}

// WithExposeErrors includes internal error messages in 500 responses.
func WithExposeErrors(expose bool) Option {
	return func(e *Executor) { e.expose = expose }
}

// WithErrorHook is called for every caught HandlerError.
func WithErrorHook(fn func(context.Context, *HandlerError)) Option {
	return func(e *Executor) { e.onError = fn }
}

// New creates an executor.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = NewPool(runtime.GOMAXPROCS(0))
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "bridge")
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Pool returns the offload pool.
func (e *Executor) Pool() *Pool { return e.pool }

// Execute runs before middleware, the handler and after middleware.
//
// Failures inside the chain are turned into error responses, so the returned
// error is only non-nil when ctx ended before a response was produced.
func (e *Executor) Execute(ctx context.Context, res *router.Resolution, req *handler.Request) (*handler.Response, error) {
	route := res.Entry.Pattern.String()
	ctx, span := e.tracer.Start(ctx, req.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("http.route", route),
			attribute.String("tern.handler.kind", res.Entry.Kind().String()),
		),
	)
	defer span.End()

	req, resp, final, herr, err := e.runBefore(ctx, span, res.Before, req.WithParams(res.Params))
	if err != nil {
		return nil, err
	}
	if resp != nil {
		if serr := checkStatus(resp); serr != nil {
			herr, resp = e.fail(ctx, span, StageBefore, route, serr), nil
		}
	}

	if herr == nil && resp == nil {
		out, err := invoke(ctx, e, res.Entry.Handler, req)
		switch {
		case err != nil:
			if cerr := cancelled(ctx, err); cerr != nil {
				return nil, cerr
			}
			herr = e.fail(ctx, span, StageHandler, route, err)
		case out == nil:
			herr = e.fail(ctx, span, StageHandler, route, ErrNoResponse)
		case checkStatus(out) != nil:
			herr = e.fail(ctx, span, StageHandler, route, checkStatus(out))
		default:
			resp = out
		}
	}

	if herr != nil {
		resp = herr.Response(e.expose)
	}

	if !final {
		for _, mw := range res.After {
			out, err := invoke(ctx, e, mw.Call, &handler.Exchange{Request: req, Response: resp})
			if err != nil {
				if cerr := cancelled(ctx, err); cerr != nil {
					return nil, cerr
				}
				resp = e.fail(ctx, span, StageAfter, mw.Name, err).Response(e.expose)
				continue
			}
			if out.Response != nil {
				if serr := checkStatus(out.Response); serr != nil {
					resp = e.fail(ctx, span, StageAfter, mw.Name, serr).Response(e.expose)
					continue
				}
				resp = out.Response
			}
			if out.Final {
				break
			}
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))
	return resp, nil
}

// Admit runs only the before middleware of res, for WebSocket upgrades. It
// returns the request to upgrade with, or the response to send instead.
func (e *Executor) Admit(ctx context.Context, res *router.Resolution, req *handler.Request) (*handler.Request, *handler.Response, error) {
	span := trace.SpanFromContext(ctx)
	req, resp, _, herr, err := e.runBefore(ctx, span, res.Before, req.WithParams(res.Params))
	if err != nil {
		return nil, nil, err
	}
	if herr != nil {
		return nil, herr.Response(e.expose), nil
	}
	if resp != nil {
		if serr := checkStatus(resp); serr != nil {
			return nil, e.fail(ctx, span, StageBefore, res.Entry.Pattern.String(), serr).Response(e.expose), nil
		}
	}
	return req, resp, nil
}

func (e *Executor) runBefore(ctx context.Context, span trace.Span, chain []handler.Middleware, req *handler.Request) (*handler.Request, *handler.Response, bool, *HandlerError, error) {
	for _, mw := range chain {
		out, err := invoke(ctx, e, mw.Call, &handler.Exchange{Request: req})
		if err != nil {
			if cerr := cancelled(ctx, err); cerr != nil {
				return nil, nil, false, nil, cerr
			}
			return req, nil, false, e.fail(ctx, span, StageBefore, mw.Name, err), nil
		}
		if out.Request != nil {
			req = out.Request
		}
		if out.Response != nil {
			span.AddEvent("short-circuit", trace.WithAttributes(
				attribute.String("tern.middleware", mw.Name),
				attribute.Bool("tern.final", out.Final),
			))
			return req, out.Response, out.Final, nil, nil
		}
	}
	return req, nil, false, nil, nil
}

// InvokeSocket runs a WebSocket callback. Failures come back as
// *HandlerError.
func (e *Executor) InvokeSocket(ctx context.Context, name string, h handler.SocketHandler, ev *handler.SocketEvent) ([]handler.Message, error) {
	if !h.Valid() {
		return nil, nil
	}
	msgs, err := invoke(ctx, e, h, ev)
	if err != nil {
		if cerr := cancelled(ctx, err); cerr != nil {
			return nil, cerr
		}
		return nil, e.fail(ctx, trace.SpanFromContext(ctx), StageSocket, name, err)
	}
	return msgs, nil
}

// NotFound builds the response for requests that matched no route.
func (e *Executor) NotFound(*handler.Request) *handler.Response {
	return handler.Text(http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func (e *Executor) fail(ctx context.Context, span trace.Span, stage Stage, name string, err error) *HandlerError {
	herr := newHandlerError(stage, name, err)

	if herr.StatusCode() >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, herr.Message)
		attrs := []any{"stage", stage, "name", name, "error", herr.Message}
		if herr.Panic != nil {
			attrs = append(attrs, "stack", string(herr.Stack))
		}
		e.logger.ErrorContext(ctx, "handler failed", attrs...)
	} else {
		e.logger.DebugContext(ctx, "handler returned status error",
			"stage", stage, "name", name, "status", herr.StatusCode())
	}

	if e.onError != nil {
		e.onError(ctx, herr)
	}
	return herr
}

// cancelled returns ctx's error when err was caused by ctx ending.
func cancelled(ctx context.Context, err error) error {
	cerr := ctx.Err()
	if cerr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return cerr
	}
	return nil
}
