package net

import (
	"github.com/pawelgaczynski/giouring"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/pin"
	usync "github.com/ehrlich-b/go-uio/internal/sync"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// recvOp is the single-shot recv encoder for connected sockets. The
// buffer is borrowed from the caller; the awaiting goroutine does not
// resume until the completion (and on cancellation the driver retains
// the operation, and with it the buffer, until the cancel ack).
//
// stream is set for connected byte streams, where a zero-length read
// means the peer is gone. On datagram sockets a zero-length result is
// a legal empty datagram and is delivered as such.
type recvOp struct {
	fd     int
	stream bool
	buf    []byte
	hold   pin.Held
	cell   *usync.OneShot[outcome[int]]
}

func newRecvOp(fd int, stream bool, buf []byte, cell *usync.OneShot[outcome[int]]) *recvOp {
	op := &recvOp{fd: fd, stream: stream, buf: buf, cell: cell}
	op.hold.Pin(&buf[0])
	return op
}

func (o *recvOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareRecv(o.fd, pin.Base(o.buf), uint32(len(o.buf)), 0)
}

func (o *recvOp) Resolve(res int32, flags uint32) uring.Status {
	switch {
	case res < 0:
		o.cell.Complete(outcome[int]{err: uio.FromCompletion("recv", res)})
	case res == 0 && o.stream:
		// Zero-length read on a connected stream: the peer is gone.
		// Surfaced as its own category, distinct from kernel errors.
		o.cell.Complete(outcome[int]{err: uio.NewError("recv", uio.ErrCodeDisconnected, "peer closed connection")})
	default:
		o.cell.Complete(outcome[int]{val: int(res)})
	}
	return uring.StatusFinalized
}

func (o *recvOp) Release() {
	o.hold.Release()
}
