package net

import (
	"context"
	"net/netip"

	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// TCPStream is a bidirectional io_uring backed TCP connection, obtained
// from a listener (Accept/Incoming) or by dialing.
type TCPStream struct {
	fd    int
	local netip.AddrPort
	peer  netip.AddrPort
}

// Dial connects to "host:port" and returns the ready stream. The socket
// is owned by the in-flight connect until it succeeds; a canceled or
// failed dial closes it.
func Dial(ctx context.Context, hostport string) (*TCPStream, error) {
	remote, err := parseAddrPort("dial", hostport)
	if err != nil {
		return nil, err
	}
	fd, err := clientSocket(remote)
	if err != nil {
		return nil, err
	}

	d := uring.Acquire(ctx)
	h := newOpHandle[connected](d)
	h.slot = d.Register(newConnectOp(fd, true, remote, h.cell))

	conn, err := h.await(ctx)
	if err != nil {
		return nil, err
	}
	return &TCPStream{fd: conn.fd, local: conn.local, peer: remote}, nil
}

// Recv reads into buf and returns the number of bytes received. A peer
// that closed the connection surfaces as ErrCodeDisconnected.
func (s *TCPStream) Recv(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, uio.NewError("recv", uio.ErrCodeIO, "empty buffer")
	}
	d := uring.Acquire(ctx)
	h := newOpHandle[int](d)
	h.slot = d.Register(newRecvOp(s.fd, true, buf, h.cell))
	return h.await(ctx)
}

// Send writes buf and returns the number of bytes sent.
func (s *TCPStream) Send(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, uio.NewError("send", uio.ErrCodeIO, "empty buffer")
	}
	d := uring.Acquire(ctx)
	h := newOpHandle[int](d)
	h.slot = d.Register(newSendOp(s.fd, true, buf, h.cell))
	return h.await(ctx)
}

// LocalAddr returns the socket's bound local address.
func (s *TCPStream) LocalAddr() (netip.AddrPort, error) {
	if s.local.IsValid() {
		return s.local, nil
	}
	local, err := localAddr(s.fd)
	if err == nil {
		s.local = local
	}
	return local, err
}

// PeerAddr returns the connected remote address.
func (s *TCPStream) PeerAddr() (netip.AddrPort, error) {
	if s.peer.IsValid() {
		return s.peer, nil
	}
	peer, err := peerAddr(s.fd)
	if err == nil {
		s.peer = peer
	}
	return peer, err
}

// Close closes the connection.
func (s *TCPStream) Close() error {
	return unix.Close(s.fd)
}
