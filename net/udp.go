package net

import (
	"context"
	"net/netip"

	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/sockaddr"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// UDPSocket is a bound io_uring backed datagram socket. Connect fixes a
// remote peer so Recv/Send (and address-less SendTo/SendMsg) can be
// used; otherwise the *From/*To/*Msg forms carry addresses explicitly.
type UDPSocket struct {
	fd   int
	addr netip.AddrPort
	peer netip.AddrPort
}

// ListenPacket binds a datagram socket to "host:port" (port 0 for
// ephemeral).
func ListenPacket(hostport string) (*UDPSocket, error) {
	ap, err := parseAddrPort("listen-packet", hostport)
	if err != nil {
		return nil, err
	}
	fd, err := udpSocket(ap)
	if err != nil {
		return nil, err
	}
	bound, err := localAddr(fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &UDPSocket{fd: fd, addr: bound}, nil
}

// Connect fixes the remote peer for this socket.
func (u *UDPSocket) Connect(ctx context.Context, remote netip.AddrPort) error {
	d := uring.Acquire(ctx)
	h := newOpHandle[connected](d)
	// The socket keeps owning its descriptor; the connect op only
	// borrows it.
	h.slot = d.Register(newConnectOp(u.fd, false, remote, h.cell))

	if _, err := h.await(ctx); err != nil {
		return err
	}
	u.peer = remote
	return nil
}

// Recv reads one datagram into buf. Requires a connected socket. A
// zero-length datagram returns (0, nil); there is no peer-closed
// condition on UDP.
func (u *UDPSocket) Recv(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, uio.NewError("recv", uio.ErrCodeIO, "empty buffer")
	}
	d := uring.Acquire(ctx)
	h := newOpHandle[int](d)
	h.slot = d.Register(newRecvOp(u.fd, false, buf, h.cell))
	return h.await(ctx)
}

// Send writes one datagram from buf. Requires a connected socket.
func (u *UDPSocket) Send(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, uio.NewError("send", uio.ErrCodeIO, "empty buffer")
	}
	d := uring.Acquire(ctx)
	h := newOpHandle[int](d)
	h.slot = d.Register(newSendOp(u.fd, false, buf, h.cell))
	return h.await(ctx)
}

// RecvFrom reads one datagram into buf and reports its source address.
func (u *UDPSocket) RecvFrom(ctx context.Context, buf []byte) (int, netip.AddrPort, error) {
	if len(buf) == 0 {
		return 0, netip.AddrPort{}, uio.NewError("recvmsg", uio.ErrCodeIO, "empty buffer")
	}
	return u.recvMsg(ctx, [][]byte{buf})
}

// RecvMsg reads one datagram scattered across bufs in order, returning
// the total byte count and the source address.
func (u *UDPSocket) RecvMsg(ctx context.Context, bufs [][]byte) (int, netip.AddrPort, error) {
	if totalLen(bufs) == 0 {
		return 0, netip.AddrPort{}, uio.NewError("recvmsg", uio.ErrCodeIO, "empty buffers")
	}
	return u.recvMsg(ctx, bufs)
}

func (u *UDPSocket) recvMsg(ctx context.Context, bufs [][]byte) (int, netip.AddrPort, error) {
	d := uring.Acquire(ctx)
	h := newOpHandle[received](d)
	h.slot = d.Register(newRecvMsgOp(u.fd, bufs, h.cell))

	r, err := h.await(ctx)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return r.n, r.from, nil
}

// SendTo writes one datagram to addr. The zero AddrPort addresses the
// connected peer.
func (u *UDPSocket) SendTo(ctx context.Context, buf []byte, addr netip.AddrPort) (int, error) {
	if len(buf) == 0 {
		return 0, uio.NewError("sendmsg", uio.ErrCodeIO, "empty buffer")
	}
	return u.sendMsg(ctx, [][]byte{buf}, addr)
}

// SendMsg writes one datagram gathered from bufs in order. The zero
// AddrPort addresses the connected peer.
func (u *UDPSocket) SendMsg(ctx context.Context, bufs [][]byte, addr netip.AddrPort) (int, error) {
	if totalLen(bufs) == 0 {
		return 0, uio.NewError("sendmsg", uio.ErrCodeIO, "empty buffers")
	}
	return u.sendMsg(ctx, bufs, addr)
}

func (u *UDPSocket) sendMsg(ctx context.Context, bufs [][]byte, addr netip.AddrPort) (int, error) {
	var to *sockaddr.Storage
	if addr.IsValid() {
		to = sockaddr.FromAddrPort(addr)
	}

	d := uring.Acquire(ctx)
	h := newOpHandle[int](d)
	h.slot = d.Register(newSendMsgOp(u.fd, bufs, to, h.cell))
	return h.await(ctx)
}

// LocalAddr returns the socket's bound address.
func (u *UDPSocket) LocalAddr() netip.AddrPort {
	return u.addr
}

// PeerAddr returns the connected peer, or the zero AddrPort on an
// unconnected socket.
func (u *UDPSocket) PeerAddr() netip.AddrPort {
	return u.peer
}

// Close closes the socket.
func (u *UDPSocket) Close() error {
	return unix.Close(u.fd)
}

func totalLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}
