package middleware

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tern-dev/tern/pkg/handler"
)

// TraceConfig configures the Trace middleware.
type TraceConfig struct {
	// IncludeIdentity adds the authenticated subject to the span.
	// May contain sensitive information, disabled by default.
	IncludeIdentity bool

	// Filter returns false for requests that should not be annotated.
	Filter func(req *handler.Request) bool

	// AttributeExtractor adds custom attributes per request.
	AttributeExtractor func(req *handler.Request) []attribute.KeyValue
}

// TraceOption configures the Trace middleware.
type TraceOption func(*TraceConfig)

// WithIncludeIdentity enables the tern.subject attribute.
func WithIncludeIdentity(include bool) TraceOption {
	return func(c *TraceConfig) { c.IncludeIdentity = include }
}

// WithTraceFilter sets a filter function for requests.
func WithTraceFilter(filter func(req *handler.Request) bool) TraceOption {
	return func(c *TraceConfig) { c.Filter = filter }
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(req *handler.Request) []attribute.KeyValue) TraceOption {
	return func(c *TraceConfig) { c.AttributeExtractor = extractor }
}

// Trace annotates the request span opened by the bridge. The before half
// records request attributes, the after half the response status.
func Trace(opts ...TraceOption) []handler.Middleware {
	var config TraceConfig
	for _, opt := range opts {
		opt(&config)
	}

	traced := func(req *handler.Request) bool {
		return config.Filter == nil || config.Filter(req)
	}

	before := handler.Before(func(ctx context.Context, req *handler.Request) (handler.Outcome, error) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() || !traced(req) {
			return handler.Next(), nil
		}

		attrs := []attribute.KeyValue{
			attribute.String("url.path", req.Path),
			attribute.String("client.address", req.RemoteAddr),
		}
		if id := GetRequestID(req); id != "" {
			attrs = append(attrs, attribute.String("tern.request_id", id))
		}
		if config.IncludeIdentity && req.Identity != nil {
			attrs = append(attrs, attribute.String("tern.subject", req.Identity.Subject))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(req)...)
		}
		span.SetAttributes(attrs...)
		return handler.Next(), nil
	}).Named("trace")

	after := handler.After(func(ctx context.Context, req *handler.Request, resp *handler.Response) (*handler.Response, error) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() || !traced(req) {
			return nil, nil
		}
		status := resp.StatusCode()
		span.AddEvent("response", trace.WithAttributes(attribute.Int("http.response.status_code", status)))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(status))
		}
		return nil, nil
	}).Named("trace")

	return []handler.Middleware{before, after}
}
