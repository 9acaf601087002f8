// Package uring owns the io_uring driver: the ring itself, the table of
// in-flight operations, the submission backlog, and the pump that moves
// work between them and the kernel.
package uring

import "github.com/pawelgaczynski/giouring"

// Status is what an operation's Resolve reports back to the driver.
type Status int

const (
	// StatusArmed: multi-shot operation, the kernel still holds the
	// submission and will generate further completions. Keep the slot.
	StatusArmed Status = iota

	// StatusRearm: multi-shot operation whose kernel-side registration
	// lapsed. Resubmit with the same slot index so outstanding cancels
	// still match.
	StatusRearm

	// StatusFinalized: single-shot result or terminal error. Free the
	// slot.
	StatusFinalized
)

// Completion is the interface every in-flight operation satisfies.
//
// Prepare encodes the operation into a submission queue entry: opcode,
// file descriptor, and the addresses of whatever pinned memory the
// operation owns. The driver stamps the slot index into the entry's
// user data afterwards; Prepare must not touch it.
//
// Resolve consumes one completion entry for the operation. It may
// mutate the operation's own state, write into its result channel, and
// wake a waiter; nothing else. It must not panic on any well-formed
// completion. Resolve runs on the driver's pump thread with the driver
// lock held, so it must not call the driver's locking methods
// (Register, Deregister, Run, InFlight, Backlog, Close).
type Completion interface {
	Prepare(sqe *giouring.SubmissionQueueEntry)
	Resolve(res int32, flags uint32) Status
}

// Discarder is implemented by operations whose completions carry
// kernel-owned resources that must not leak when the completion arrives
// after deregistration. The canonical case is accept: a canceled accept
// may still deliver a connection, whose descriptor is closed here.
type Discarder interface {
	Discard(res int32, flags uint32)
}

// Releaser is implemented by operations that pinned memory for their
// submission. The driver calls Release exactly once, when the slot is
// removed (terminal resolve or cancel ack), at which point the kernel
// holds no reference to the memory.
type Releaser interface {
	Release()
}
