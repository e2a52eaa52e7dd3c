// Package router maps (method, path) pairs to route entries and their
// middleware chains.
//
// Registration happens on a Router, which is safe for concurrent use. Snapshot
// freezes the current registrations into a Table; tables are immutable and
// are what the server consults on every request, so lookups take no locks.
// Publishing a fresh snapshot is how routes change while the server runs.
//
// # Patterns
//
//	/users            literal
//	/users/:id        named parameter, matches one non-empty segment
//	/files/*path      wildcard, matches one or more trailing segments
//	/files/*          wildcard stored under the "*" parameter
//
// At every position a literal child is tried before a parameter child, and a
// parameter child before a wildcard, with backtracking. A path therefore
// resolves to the pattern with the longest literal prefix among those that
// match.
//
// Two patterns that differ only in parameter names share a key; registering
// the second replaces the first.
//
// # Middleware order
//
// For a resolved route the before chain is the global before middleware in
// registration order followed by the route's own before middleware. The after
// chain is the route's after middleware followed by the global after
// middleware.
package router
