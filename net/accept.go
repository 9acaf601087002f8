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

// acceptedConn is what an accept completion produces: a newly owned
// descriptor and the peer's address.
type acceptedConn struct {
	fd   int
	peer netip.AddrPort
}

// acceptOp is the single-shot accept encoder. It owns the pinned
// address storage the kernel fills with the peer address.
type acceptOp struct {
	fd   int
	addr *sockaddr.Storage
	hold pin.Held
	cell *usync.OneShot[outcome[acceptedConn]]
}

func newAcceptOp(fd int, cell *usync.OneShot[outcome[acceptedConn]]) *acceptOp {
	op := &acceptOp{fd: fd, addr: sockaddr.New(), cell: cell}
	op.addr.Pin(&op.hold)
	return op
}

func (o *acceptOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareAccept(o.fd, o.addr.Ptr(), o.addr.LenPtr(), 0)
}

func (o *acceptOp) Resolve(res int32, flags uint32) uring.Status {
	if res < 0 {
		o.cell.Complete(outcome[acceptedConn]{err: uio.FromCompletion("accept", res)})
	} else {
		o.cell.Complete(outcome[acceptedConn]{val: acceptedConn{
			fd:   int(res),
			peer: o.addr.AddrPort(),
		}})
	}
	return uring.StatusFinalized
}

// Discard handles an accept completion that arrives after the
// operation was canceled: the kernel already consumed a connection, so
// the stray descriptor must be closed rather than leaked.
func (o *acceptOp) Discard(res int32, flags uint32) {
	if res >= 0 {
		unix.Close(int(res))
	}
}

func (o *acceptOp) Release() {
	o.hold.Release()
}
