package net

import (
	"net/netip"

	"github.com/pawelgaczynski/giouring"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/pin"
	"github.com/ehrlich-b/go-uio/internal/sockaddr"
	usync "github.com/ehrlich-b/go-uio/internal/sync"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// received is what a recvmsg completion produces: total bytes scattered
// across the buffers and the datagram's source address.
type received struct {
	n    int
	from netip.AddrPort
}

// recvMsgOp is the single-shot recvmsg encoder for datagram sockets.
// It owns the pinned message header, iovec array, and address storage;
// the data buffers themselves are borrowed from the caller.
type recvMsgOp struct {
	fd   int
	msg  *sockaddr.Msg
	hold pin.Held
	cell *usync.OneShot[outcome[received]]
}

func newRecvMsgOp(fd int, bufs [][]byte, cell *usync.OneShot[outcome[received]]) *recvMsgOp {
	op := &recvMsgOp{
		fd:   fd,
		msg:  sockaddr.NewMsg(bufs, sockaddr.New()),
		cell: cell,
	}
	op.msg.Pin(&op.hold)
	return op
}

func (o *recvMsgOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareRecvMsg(o.fd, o.msg.Hdr(), 0)
}

func (o *recvMsgOp) Resolve(res int32, flags uint32) uring.Status {
	if res < 0 {
		o.cell.Complete(outcome[received]{err: uio.FromCompletion("recvmsg", res)})
	} else {
		o.cell.Complete(outcome[received]{val: received{
			n:    int(res),
			from: o.msg.Addr().AddrPort(),
		}})
	}
	return uring.StatusFinalized
}

func (o *recvMsgOp) Release() {
	o.hold.Release()
}

// sendMsgOp is the single-shot sendmsg encoder. The address pointer is
// null for connected sockets.
type sendMsgOp struct {
	fd   int
	msg  *sockaddr.Msg
	hold pin.Held
	cell *usync.OneShot[outcome[int]]
}

func newSendMsgOp(fd int, bufs [][]byte, to *sockaddr.Storage, cell *usync.OneShot[outcome[int]]) *sendMsgOp {
	op := &sendMsgOp{
		fd:   fd,
		msg:  sockaddr.NewMsg(bufs, to),
		cell: cell,
	}
	op.msg.Pin(&op.hold)
	return op
}

func (o *sendMsgOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareSendMsg(o.fd, o.msg.Hdr(), 0)
}

func (o *sendMsgOp) Resolve(res int32, flags uint32) uring.Status {
	if res < 0 {
		o.cell.Complete(outcome[int]{err: uio.FromCompletion("sendmsg", res)})
	} else {
		o.cell.Complete(outcome[int]{val: int(res)})
	}
	return uring.StatusFinalized
}

func (o *sendMsgOp) Release() {
	o.hold.Release()
}
