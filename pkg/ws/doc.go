// Package ws manages WebSocket connections for socket routes.
//
// Each upgraded connection is assigned a handler.ConnID from an arena of
// slots. The ID carries the slot generation, so an ID that outlives its
// connection never reaches a newer connection that reuses the slot; Send and
// Close on such an ID fail with ErrConnectionClosed.
//
// A connection moves through Connecting, Open, Closing and Closed. Inbound
// frames are read and dispatched in order by one goroutine per connection;
// outbound messages go through a per-connection queue drained by one writer
// goroutine, so concurrent senders never interleave frames. The on-close
// callback runs exactly once, whichever way the connection ends.
package ws
