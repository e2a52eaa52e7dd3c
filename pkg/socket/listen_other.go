//go:build !linux

package socket

import (
	"errors"
	"net"
	"os"
	"syscall"
)

// listen falls back to the standard listener and detaches its descriptor.
// The backlog is the platform default here.
func listen(addr *net.TCPAddr, _ int, _ options) (*os.File, error) {
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.File()
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return KindAddressInUse
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return KindPermissionDenied
	case errors.Is(err, syscall.EADDRNOTAVAIL):
		return KindInvalidAddress
	}
	return KindOther
}
