// Package wire converts between net/http and gorilla/websocket values and the
// handler types the core works with.
//
// HTTP/1.1 framing (request line, headers, Content-Length and chunked bodies)
// is done by net/http; WebSocket framing (opcodes, FIN, payload lengths and
// client masking) by gorilla/websocket. This package owns what sits on top:
// path canonicalization, body limits, response assembly and close codes.
package wire
