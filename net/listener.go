package net

import (
	"context"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uio/internal/constants"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// TCPListener is an io_uring backed TCP listener socket. Thanks to
// SO_REUSEPORT several listeners may share one address, one per worker
// if desired.
//
// There are two ways to consume it: Accept, which registers a
// single-shot accept per call, and Incoming, which registers one
// multi-shot accept and streams connections until closed.
type TCPListener struct {
	fd   int
	addr netip.AddrPort
}

// Listen binds a listener to "host:port" (IPv6 hosts in brackets, port
// 0 for ephemeral) with the default backlog.
func Listen(hostport string) (*TCPListener, error) {
	return ListenBacklog(hostport, constants.DefaultListenBacklog)
}

// ListenBacklog is Listen with an explicit listen(2) queue length.
func ListenBacklog(hostport string, backlog int) (*TCPListener, error) {
	ap, err := parseAddrPort("listen", hostport)
	if err != nil {
		return nil, err
	}
	fd, bound, err := listenerSocket(ap, backlog)
	if err != nil {
		return nil, err
	}
	return &TCPListener{fd: fd, addr: bound}, nil
}

// Addr returns the address the listener is bound to, with any ephemeral
// port resolved.
func (l *TCPListener) Addr() netip.AddrPort {
	return l.addr
}

// Accept waits for and returns the next connection. Each call registers
// one accept operation; canceling ctx deregisters it.
func (l *TCPListener) Accept(ctx context.Context) (*TCPStream, error) {
	d := uring.Acquire(ctx)
	h := newOpHandle[acceptedConn](d)
	h.slot = d.Register(newAcceptOp(l.fd, h.cell))

	conn, err := h.await(ctx)
	if err != nil {
		return nil, err
	}
	return &TCPStream{fd: conn.fd, peer: conn.peer}, nil
}

// Incoming registers a multi-shot accept and returns the connection
// stream. Best created once, outside the receive loop, and closed when
// done.
func (l *TCPListener) Incoming(ctx context.Context) *Incoming {
	return newIncoming(ctx, l.fd)
}

// Close closes the listening socket. Operations in flight against it
// resolve with ECANCELED or EBADF as the kernel sees fit.
func (l *TCPListener) Close() error {
	return unix.Close(l.fd)
}
