// Package net exposes io_uring backed sockets: a TCP listener and
// stream, and a UDP socket, designed as drop-in style replacements for
// their standard library counterparts in programs running under the
// go-uio runtime.
//
// Every method that performs I/O registers one operation with the
// current driver (the worker's own ring when called from an executor
// task) and suspends the calling goroutine until the kernel reports the
// matching completion. Canceling the context deregisters the operation;
// cancellation is best effort and the operation may still have had side
// effects by the time the kernel sees the cancel.
package net

import (
	"net/netip"

	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
)

// parseAddrPort parses "host:port" (IPv6 hosts in brackets) into an
// address, surfacing failures as address-parse errors.
func parseAddrPort(op, hostport string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(hostport)
	if err != nil {
		return netip.AddrPort{}, &uio.Error{
			Op:    op,
			Slot:  -1,
			Code:  uio.ErrCodeAddrParse,
			Msg:   "invalid address " + hostport,
			Inner: err,
		}
	}
	return ap, nil
}

// localAddr queries the socket's bound local address.
func localAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}, uio.WrapError("getsockname", err)
	}
	return fromUnixSockaddr(sa), nil
}

// peerAddr queries the connected socket's remote address.
func peerAddr(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return netip.AddrPort{}, uio.WrapError("getpeername", err)
	}
	return fromUnixSockaddr(sa), nil
}

func fromUnixSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	default:
		return netip.AddrPort{}
	}
}

func toUnixSockaddr(ap netip.AddrPort) unix.Sockaddr {
	if ap.Addr().Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().As4()}
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}
}
