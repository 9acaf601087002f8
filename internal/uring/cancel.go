package uring

import "github.com/pawelgaczynski/giouring"

// IORING_ASYNC_CANCEL_ALL: cancel every in-flight submission whose user
// data matches the key, not just the first. Required so a lapsed-and-
// rearmed multi-shot is still covered by a cancel issued against its
// original slot.
const asyncCancelAll = 1 << 0

// cancelOp targets all kernel submissions carrying a given slot index.
// It occupies a slot of its own so the ack can be correlated.
type cancelOp struct {
	driver *Driver
	target uint64
}

func (c *cancelOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareCancel64(c.target, asyncCancelAll)
}

func (c *cancelOp) Resolve(res int32, flags uint32) Status {
	// The numeric result is deliberately ignored: cancellation is best
	// effort, and ENOENT here just means the target completed (or never
	// reached the kernel) before the cancel was seen. Either way the
	// kernel holds no further reference to the target's memory.
	c.driver.finishCancelLocked(c.target)
	return StatusFinalized
}
