package net

import (
	"github.com/pawelgaczynski/giouring"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/pin"
	usync "github.com/ehrlich-b/go-uio/internal/sync"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// sendOp is the single-shot send encoder for connected sockets. The
// buffer is borrowed read-only from the caller under the same lifetime
// contract as recvOp.
//
// stream follows the same rule as recvOp: a zero-length result is the
// disconnect signal on byte streams only, never on datagram sockets.
type sendOp struct {
	fd     int
	stream bool
	buf    []byte
	hold   pin.Held
	cell   *usync.OneShot[outcome[int]]
}

func newSendOp(fd int, stream bool, buf []byte, cell *usync.OneShot[outcome[int]]) *sendOp {
	op := &sendOp{fd: fd, stream: stream, buf: buf, cell: cell}
	op.hold.Pin(&buf[0])
	return op
}

func (o *sendOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareSend(o.fd, pin.Base(o.buf), uint32(len(o.buf)), 0)
}

func (o *sendOp) Resolve(res int32, flags uint32) uring.Status {
	switch {
	case res < 0:
		o.cell.Complete(outcome[int]{err: uio.FromCompletion("send", res)})
	case res == 0 && o.stream:
		o.cell.Complete(outcome[int]{err: uio.NewError("send", uio.ErrCodeDisconnected, "peer closed connection")})
	default:
		o.cell.Complete(outcome[int]{val: int(res)})
	}
	return uring.StatusFinalized
}

func (o *sendOp) Release() {
	o.hold.Release()
}
