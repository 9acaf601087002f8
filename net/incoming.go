package net

import (
	"context"
	"io"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
	usync "github.com/ehrlich-b/go-uio/internal/sync"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// incomingOp is the multi-shot accept encoder. A single submission
// keeps producing connections until the kernel drops it, at which point
// the driver resubmits with the same slot.
type incomingOp struct {
	fd   int
	sink *usync.Sender[outcome[acceptedConn]]
}

func (o *incomingOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareMultishotAccept(o.fd, 0, 0, 0)
}

func (o *incomingOp) Resolve(res int32, flags uint32) uring.Status {
	var out outcome[acceptedConn]
	if res < 0 {
		out.err = uio.FromCompletion("accept-multi", res)
	} else {
		// Multishot accept carries no address buffer; peers are queried
		// lazily via getpeername when asked for.
		out.val = acceptedConn{fd: int(res)}
	}

	if o.sink.Push(out) != nil {
		// Consumer is gone; stop regenerating and let the slot die.
		if res >= 0 {
			unix.Close(int(res))
		}
		return uring.StatusFinalized
	}
	if flags&giouring.CQEFMore != 0 {
		return uring.StatusArmed
	}
	return uring.StatusRearm
}

func (o *incomingOp) Discard(res int32, flags uint32) {
	if res >= 0 {
		unix.Close(int(res))
	}
}

// Incoming is a stream of accepted connections backed by one multi-shot
// accept registration. It is meant to be created once and iterated;
// Close deregisters the operation.
type Incoming struct {
	driver *uring.Driver
	slot   uint64
	recv   *usync.Receiver[outcome[acceptedConn]]
	notify chan struct{}
	closed bool
}

func newIncoming(ctx context.Context, fd int) *Incoming {
	d := uring.Acquire(ctx)
	tx, rx := usync.NewMultiShot[outcome[acceptedConn]]()
	in := &Incoming{
		driver: d,
		recv:   rx,
		notify: make(chan struct{}, 1),
	}
	in.slot = d.Register(&incomingOp{fd: fd, sink: tx})
	return in
}

func (in *Incoming) wake() {
	select {
	case in.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next connection is available. It returns io.EOF
// once the stream is closed. A ctx expiry returns ctx.Err() without
// tearing the stream down; the registration stays armed.
func (in *Incoming) Next(ctx context.Context) (*TCPStream, error) {
	if in.closed {
		return nil, io.EOF
	}
	for {
		if out, ok, closed := in.recv.TryRecv(); ok {
			if out.err != nil {
				return nil, out.err
			}
			return &TCPStream{fd: out.val.fd}, nil
		} else if closed {
			return nil, io.EOF
		}
		in.recv.SetWaker(in.wake)
		if out, ok, closed := in.recv.TryRecv(); ok {
			if out.err != nil {
				return nil, out.err
			}
			return &TCPStream{fd: out.val.fd}, nil
		} else if closed {
			return nil, io.EOF
		}
		select {
		case <-in.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close deregisters the multi-shot accept and drops the consumer side.
// Connections already accepted by the kernel but not yet returned by
// Next are closed: those already queued here by Close itself, and those
// whose completions arrive later by the driver as they drain.
func (in *Incoming) Close() {
	if in.closed {
		return
	}
	in.closed = true
	// After Deregister no further Resolve pushes into the queue, so
	// draining it here sees every queued connection.
	in.driver.Deregister(in.slot)
	for {
		out, ok, _ := in.recv.TryRecv()
		if !ok {
			break
		}
		if out.err == nil {
			unix.Close(out.val.fd)
		}
	}
	in.recv.Close()
}
