//go:build linux

package socket

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen creates the socket with SO_REUSEADDR and SO_REUSEPORT set before
// bind, then puts it into listening state.
func listen(addr *net.TCPAddr, backlog int, o options) (*os.File, error) {
	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := addr.IP.To4(); ip4 != nil || addr.IP == nil {
		in4 := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(in4.Addr[:], ip4)
		}
		sa = in4
	} else {
		family = unix.AF_INET6
		in6 := &unix.SockaddrInet6{Port: addr.Port}
		copy(in6.Addr[:], addr.IP.To16())
		if addr.Zone != "" {
			if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
				in6.ZoneId = uint32(ifi.Index)
			}
		}
		sa = in6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := configure(fd, o); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	return os.NewFile(uintptr(fd), "tcp:"+addr.String()), nil
}

func configure(fd int, o options) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return os.NewSyscallError("setsockopt SO_REUSEADDR", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return os.NewSyscallError("setsockopt SO_REUSEPORT", err)
	}
	if o.deferAccept > 0 {
		secs := int(o.deferAccept.Seconds())
		if secs < 1 {
			secs = 1
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, secs); err != nil {
			return os.NewSyscallError("setsockopt TCP_DEFER_ACCEPT", err)
		}
	}
	return nil
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return KindAddressInUse
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return KindPermissionDenied
	case errors.Is(err, unix.EADDRNOTAVAIL), errors.Is(err, unix.EAFNOSUPPORT), errors.Is(err, unix.EINVAL):
		return KindInvalidAddress
	}
	return KindOther
}
