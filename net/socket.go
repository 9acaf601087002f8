package net

import (
	"net/netip"

	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
)

func family(ap netip.AddrPort) int {
	if ap.Addr().Is4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// listenerSocket creates, binds, and starts listening on a stream
// socket. Listeners set SO_REUSEPORT so a single address can be shared
// across processes (and across per-worker listeners).
func listenerSocket(ap netip.AddrPort, backlog int) (int, netip.AddrPort, error) {
	fd, err := unix.Socket(family(ap), unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, netip.AddrPort{}, uio.WrapError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, uio.WrapError("setsockopt", err)
	}
	if err := unix.Bind(fd, toUnixSockaddr(ap)); err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, uio.WrapError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, uio.WrapError("listen", err)
	}

	// Re-query so an ephemeral port request comes back resolved.
	bound, err := localAddr(fd)
	if err != nil {
		unix.Close(fd)
		return -1, netip.AddrPort{}, err
	}
	return fd, bound, nil
}

// clientSocket creates an unconnected stream socket in the family of
// the remote address.
func clientSocket(remote netip.AddrPort) (int, error) {
	fd, err := unix.Socket(family(remote), unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, uio.WrapError("socket", err)
	}
	return fd, nil
}

// udpSocket creates and binds a datagram socket.
func udpSocket(ap netip.AddrPort) (int, error) {
	fd, err := unix.Socket(family(ap), unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, uio.WrapError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return -1, uio.WrapError("setsockopt", err)
	}
	if err := unix.Bind(fd, toUnixSockaddr(ap)); err != nil {
		unix.Close(fd)
		return -1, uio.WrapError("bind", err)
	}
	return fd, nil
}
