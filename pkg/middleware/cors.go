package middleware

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tern-dev/tern/pkg/handler"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. "*" allows any origin.
	AllowOrigins []string

	// AllowMethods defaults to GET, POST, PUT, PATCH, DELETE, HEAD.
	AllowMethods []string

	// AllowHeaders lists request headers allowed on preflight. Empty
	// reflects the preflight's Access-Control-Request-Headers.
	AllowHeaders []string

	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func (c CORSConfig) allowed(origin string) bool {
	return slices.Contains(c.AllowOrigins, "*") || slices.Contains(c.AllowOrigins, origin)
}

// CORS answers preflight requests with 204 and adds CORS headers to
// responses for allowed origins.
func CORS(config CORSConfig) []handler.Middleware {
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodHead,
		}
	}
	methods := strings.Join(config.AllowMethods, ", ")

	before := handler.Before(func(_ context.Context, req *handler.Request) (handler.Outcome, error) {
		origin := req.Header.Get("Origin")
		if req.Method != http.MethodOptions || req.Header.Get("Access-Control-Request-Method") == "" {
			return handler.Next(), nil
		}
		if origin == "" || !config.allowed(origin) {
			return handler.Halt(handler.Status(http.StatusForbidden)), nil
		}

		resp := handler.Status(http.StatusNoContent)
		resp.Header = http.Header{}
		setOrigin(resp.Header, config, origin)
		resp.Header.Set("Access-Control-Allow-Methods", methods)
		if len(config.AllowHeaders) > 0 {
			resp.Header.Set("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
		} else if h := req.Header.Get("Access-Control-Request-Headers"); h != "" {
			resp.Header.Set("Access-Control-Allow-Headers", h)
		}
		if config.MaxAge > 0 {
			resp.Header.Set("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
		}
		return handler.Halt(resp), nil
	}).Named("cors")

	after := handler.After(func(_ context.Context, req *handler.Request, resp *handler.Response) (*handler.Response, error) {
		origin := req.Header.Get("Origin")
		if origin == "" || !config.allowed(origin) {
			return nil, nil
		}
		resp = resp.Clone()
		setOrigin(resp.Header, config, origin)
		if len(config.ExposeHeaders) > 0 {
			resp.Header.Set("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
		}
		return resp, nil
	}).Named("cors")

	return []handler.Middleware{before, after}
}

func setOrigin(h http.Header, config CORSConfig, origin string) {
	if slices.Contains(config.AllowOrigins, "*") && !config.AllowCredentials {
		h.Set("Access-Control-Allow-Origin", "*")
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}
