package server

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/router"
	"github.com/tern-dev/tern/pkg/wire"
)

const unmatchedRoute = "unmatched"

// ServeHTTP runs one request through the published route table.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	route, status := s.serve(w, r)
	if status != 0 {
		s.metrics.observeRequest(r.Method, route, status, time.Since(start).Seconds())
	}
}

// serve returns the route label and the status written, or 0 when nothing
// was written by the pipeline.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) (string, int) {
	ctx := r.Context()

	req, err := wire.ReadRequest(w, r, s.config.MaxBodyBytes)
	if err != nil {
		return unmatchedRoute, s.write(w, r, "", wire.ErrorResponse(err))
	}
	s.addRequestHeaders(req)

	res, err := s.table.Load().Resolve(req.Method, req.Path)
	if err != nil {
		if !errors.Is(err, router.ErrNotFound) {
			s.logger.Warn("route resolution failed", "path", req.Path, "error", err)
		}
		return unmatchedRoute, s.write(w, r, req.Path, s.exec.NotFound(req))
	}
	route := res.Entry.Pattern.String()

	if res.Entry.IsSocket() {
		return route, s.upgrade(w, r, res, req)
	}

	resp, err := s.exec.Execute(ctx, res, req)
	if err != nil {
		s.logger.Debug("request abandoned", "route", route, "error", err)
		return route, 0
	}
	return route, s.write(w, r, req.Path, resp)
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request, res *router.Resolution, req *handler.Request) int {
	if !wire.IsUpgrade(r) {
		resp := handler.Text(http.StatusUpgradeRequired, http.StatusText(http.StatusUpgradeRequired)).
			WithHeader("Upgrade", "websocket")
		return s.write(w, r, req.Path, resp)
	}

	admitted, resp, err := s.exec.Admit(r.Context(), res, req)
	if err != nil {
		return 0
	}
	if resp != nil {
		return s.write(w, r, req.Path, resp)
	}

	if err := s.sockets.Serve(w, r, res.Entry.Pattern.String(), res.Entry.Socket, admitted); err != nil {
		return 0
	}
	return http.StatusSwitchingProtocols
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, path string, resp *handler.Response) int {
	resp = s.addResponseHeaders(path, resp)
	if err := wire.WriteResponse(w, r, resp); err != nil {
		s.logger.Debug("response write failed", "path", path, "error", err)
	}
	return resp.StatusCode()
}

func (s *Server) addRequestHeaders(req *handler.Request) {
	for name, values := range s.config.RequestHeaders {
		if _, ok := req.Header[name]; !ok {
			req.Header[name] = slices.Clone(values)
		}
	}
}

func (s *Server) addResponseHeaders(path string, resp *handler.Response) *handler.Response {
	if len(s.config.ResponseHeaders) == 0 || slices.Contains(s.config.ExcludeResponseHeaders, path) {
		return resp
	}
	resp = resp.Clone()
	for name, values := range s.config.ResponseHeaders {
		if _, ok := resp.Header[name]; !ok {
			resp.Header[name] = slices.Clone(values)
		}
	}
	return resp
}
