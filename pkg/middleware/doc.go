// Package middleware provides reusable before/after middleware for tern
// routes.
//
// Constructors that need both phases return a []handler.Middleware pair, so
// they are registered with a spread:
//
//	r.Use(middleware.RequestID()...)
//	r.Use(middleware.AccessLog(logger)...)
//	r.Use(middleware.CORS(middleware.CORSConfig{AllowOrigins: []string{"*"}})...)
//
// Single-phase middleware is returned as a handler.Middleware:
//
//	r.UseRoute("GET", "/admin/*", middleware.JWT(middleware.JWTConfig{Secret: key}))
//
// # Tracing
//
// The bridge already opens a server span per request. Trace adds the route
// and caller attributes to that span and marks responses of 500 and above
// as errors:
//
//	r.Use(middleware.Trace(middleware.WithAttributeExtractor(tenantAttrs))...)
package middleware
