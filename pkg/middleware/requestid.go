package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/tern-dev/tern/pkg/handler"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID reuses an inbound X-Request-ID or generates one, stores it on
// the request and echoes it on the response.
func RequestID() []handler.Middleware {
	before := handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		return handler.Replace(req.WithHeader(RequestIDHeader, id).WithValue(requestIDKey{}, id)), nil
	}).Named("request-id")

	after := handler.After(func(_ context.Context, req *handler.Request, resp *handler.Response) (*handler.Response, error) {
		id := GetRequestID(req)
		if id == "" || resp.Header.Get(RequestIDHeader) != "" {
			return nil, nil
		}
		return resp.WithHeader(RequestIDHeader, id), nil
	}).Named("request-id")

	return []handler.Middleware{before, after}
}

// GetRequestID returns the ID set by RequestID, or "".
func GetRequestID(req *handler.Request) string {
	id, _ := req.Value(requestIDKey{}).(string)
	return id
}
