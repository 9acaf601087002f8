package net

import (
	"net/netip"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/pin"
	"github.com/ehrlich-b/go-uio/internal/sockaddr"
	usync "github.com/ehrlich-b/go-uio/internal/sync"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// connected is what a connect completion produces: the now-connected
// descriptor and the local address the kernel bound for it.
type connected struct {
	fd    int
	local netip.AddrPort
}

// connectOp is the single-shot connect encoder. It owns the pinned
// remote address, and — when ownsFD is set (stream dial) — the socket
// itself until the connect succeeds, at which point ownership transfers
// through the result channel.
type connectOp struct {
	fd          int
	ownsFD      bool
	transferred bool
	addr        *sockaddr.Storage
	hold        pin.Held
	cell        *usync.OneShot[outcome[connected]]
}

func newConnectOp(fd int, ownsFD bool, remote netip.AddrPort, cell *usync.OneShot[outcome[connected]]) *connectOp {
	op := &connectOp{fd: fd, ownsFD: ownsFD, addr: sockaddr.FromAddrPort(remote), cell: cell}
	op.addr.Pin(&op.hold)
	return op
}

func (o *connectOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareConnect(o.fd, o.addr.Ptr(), uint64(o.addr.Len()))
}

func (o *connectOp) Resolve(res int32, flags uint32) uring.Status {
	if res < 0 {
		o.cell.Complete(outcome[connected]{err: uio.FromCompletion("connect", res)})
		return uring.StatusFinalized
	}

	local, err := localAddr(o.fd)
	if err != nil {
		o.cell.Complete(outcome[connected]{err: err})
		return uring.StatusFinalized
	}
	o.transferred = true
	o.cell.Complete(outcome[connected]{val: connected{fd: o.fd, local: local}})
	return uring.StatusFinalized
}

// Release closes an owned socket that never made it out: a failed or
// canceled dial must not leak its descriptor.
func (o *connectOp) Release() {
	o.hold.Release()
	if o.ownsFD && !o.transferred {
		unix.Close(o.fd)
	}
}
