package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/tern-dev/tern/pkg/handler"
)

type startKey struct{}

// AccessLog logs one line per request with its status and duration.
// Responses of 500 and above are logged at Error, 400 and above at Warn.
func AccessLog(logger *slog.Logger) []handler.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "access")

	before := handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		return handler.Replace(req.WithValue(startKey{}, time.Now())), nil
	}).Named("access-log")

	after := handler.After(func(ctx context.Context, req *handler.Request, resp *handler.Response) (*handler.Response, error) {
		status := resp.StatusCode()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", req.Method,
			"path", req.Path,
			"status", status,
			"remote", req.RemoteAddr,
		}
		if start, ok := req.Value(startKey{}).(time.Time); ok {
			attrs = append(attrs, "duration", time.Since(start))
		}
		if id := GetRequestID(req); id != "" {
			attrs = append(attrs, "request_id", id)
		}
		logger.Log(ctx, level, "request", attrs...)
		return nil, nil
	}).Named("access-log")

	return []handler.Middleware{before, after}
}
