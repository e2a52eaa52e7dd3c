package server

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running server.
	ErrAlreadyStarted = errors.New("server: already started")

	// ErrServerClosed is returned by Start after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)
