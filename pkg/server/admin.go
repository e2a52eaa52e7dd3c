package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminHandler returns the operations API: health, readiness, metrics,
// the route table and live WebSocket connections.
func (s *Server) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	})

	r.Method(http.MethodGet, s.config.Admin.MetricsPath,
		promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{Registry: s.config.Registry}))

	r.Route("/debug", func(r chi.Router) {
		r.Get("/routes", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, s.table.Load().Routes())
		})
		r.Get("/connections", func(w http.ResponseWriter, _ *http.Request) {
			ids := s.sockets.IDs()
			out := struct {
				Count int      `json:"count"`
				IDs   []string `json:"ids"`
			}{Count: len(ids), IDs: make([]string, len(ids))}
			for i, id := range ids {
				out.IDs[i] = id.String()
			}
			writeJSON(w, out)
		})
	})

	return r
}

// Ready reports whether the server is accepting traffic.
func (s *Server) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

func (s *Server) startAdmin() error {
	ln, err := net.Listen("tcp", s.config.Admin.Address)
	if err != nil {
		return err
	}
	s.admin = &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	go func() {
		if err := s.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server stopped", "error", err)
		}
	}()
	s.logger.Info("admin listening", "address", ln.Addr().String())
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
