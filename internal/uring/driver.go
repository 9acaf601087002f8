package uring

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/ehrlich-b/go-uio/internal/constants"
	"github.com/ehrlich-b/go-uio/internal/interfaces"
	"github.com/ehrlich-b/go-uio/internal/logging"
)

// Config contains configuration for creating a Driver.
type Config struct {
	Entries        uint32        // Submission queue depth (default 4096)
	MinCompletions uint32        // Completions one pump iteration waits for (default 1)
	SubmitTimeout  time.Duration // Bound on the blocking wait (default 100ms)
	Logger         interfaces.Logger
	Observer       interfaces.Observer
}

// Driver owns one io_uring and every operation in flight on it. One
// driver exists per worker thread; submissions never cross threads, so
// the ring itself is only touched from the owning pump. Register and
// Deregister may be called from any goroutine and only touch the
// Go-side tables under the driver lock.
type Driver struct {
	mu      sync.Mutex
	ring    *giouring.Ring
	ops     slab
	pending []uint64 // slot indexes awaiting submission queue space
	closed  bool

	minCompletions uint32
	submitTimeout  syscall.Timespec

	log interfaces.Logger
	obs interfaces.Observer
}

// NewDriver creates a driver with its own ring. Fails if the kernel
// cannot provide the io_uring features we need.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Entries == 0 {
		cfg.Entries = constants.DefaultRingEntries
	}
	if cfg.MinCompletions == 0 {
		cfg.MinCompletions = constants.DefaultMinCompletions
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = constants.DefaultSubmitTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default().Component("uring")
	}

	ring, err := giouring.CreateRing(cfg.Entries)
	if err != nil {
		return nil, fmt.Errorf("create io_uring (entries=%d): %w", cfg.Entries, err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Debugf("created io_uring driver entries=%d timeout=%s", cfg.Entries, cfg.SubmitTimeout)
	}

	d := &Driver{
		ring:           ring,
		pending:        make([]uint64, 0, constants.PendingInitialCap),
		minCompletions: cfg.MinCompletions,
		submitTimeout:  syscall.NsecToTimespec(cfg.SubmitTimeout.Nanoseconds()),
		log:            cfg.Logger,
		obs:            cfg.Observer,
	}
	d.ops.entries = make([]slabEntry, 0, constants.SlabInitialCap)
	return d, nil
}

// Register assigns op a slot, queues its submission, and returns the
// slot index. The index is what the kernel echoes back in user data and
// what Deregister takes.
func (d *Driver) Register(op Completion) uint64 {
	d.mu.Lock()
	idx := uint64(d.ops.insert(op))
	d.pending = append(d.pending, idx)
	d.mu.Unlock()

	if d.obs != nil {
		d.obs.ObserveRegister()
	}
	return idx
}

// Deregister removes the operation at slot, best effort. The slot is
// marked canceled and an async-cancel targeting its user data is
// queued; the slot itself (and the operation's pinned buffers) are
// retained until the cancel ack, at which point they are freed. Any
// completion arriving for the canceled slot in the meantime is handed
// to the operation's Discard hook (if any) and otherwise dropped.
// Safe to call repeatedly; a no-op if the slot is already gone.
func (d *Driver) Deregister(slot uint64) {
	d.mu.Lock()
	e := d.ops.get(int(slot))
	if e == nil || e.canceled {
		d.mu.Unlock()
		return
	}
	e.canceled = true
	cancelIdx := uint64(d.ops.insert(&cancelOp{driver: d, target: slot}))
	d.pending = append(d.pending, cancelIdx)
	d.mu.Unlock()

	if d.obs != nil {
		d.obs.ObserveCancel()
	}
}

// Run executes one iteration of the pump: move queued submissions into
// the submission queue, submit and wait for completions (bounded by the
// configured timeout), drain what is left of the backlog, then dispatch
// every reaped completion. Only unexpected submit errnos propagate;
// busy and timed-out are absorbed.
func (d *Driver) Run() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("driver closed")
	}
	d.moveLocked(false)
	d.mu.Unlock()

	// Flush the submission queue and wait for at least minCompletions
	// or the timeout, whichever comes first. The wait is done without
	// the lock so tasks can keep registering.
	if _, err := d.ring.SubmitAndWait(0); err != nil {
		if !temporaryErrno(err) {
			return fmt.Errorf("io_uring submit: %w", err)
		}
		if d.obs != nil {
			d.obs.ObserveSubmitRetry()
		}
	}
	if _, err := d.ring.WaitCQEs(d.minCompletions, &d.submitTimeout, nil); err != nil {
		if !temporaryErrno(err) {
			return fmt.Errorf("io_uring wait: %w", err)
		}
		if d.obs != nil {
			d.obs.ObserveSubmitRetry()
		}
	}

	d.mu.Lock()
	d.moveLocked(true)
	d.reapLocked()
	live := d.ops.live
	d.mu.Unlock()

	if d.obs != nil {
		d.obs.ObserveSlots(live)
	}
	return nil
}

// InFlight returns the number of occupied operation slots, canceled
// ones included.
func (d *Driver) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ops.live
}

// Backlog returns the number of submissions waiting for queue space.
func (d *Driver) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close tears the ring down. In-flight operations never resolve; Close
// is only safe once the owner has stopped pumping and no tasks can
// register.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.ring.QueueExit()
	if d.log != nil {
		d.log.Debugf("closed io_uring driver, %d slots abandoned", d.ops.live)
	}
}

// moveLocked transfers pending submissions into the submission queue in
// FIFO order. With submitOnFull set, a full queue is flushed with a
// plain submit and the transfer continues until the kernel reports
// busy; otherwise the remainder stays parked for the next iteration.
func (d *Driver) moveLocked(submitOnFull bool) {
	taken := 0
	for taken < len(d.pending) {
		idx := d.pending[taken]
		e := d.ops.get(int(idx))
		if e == nil || e.canceled {
			// Deregistered before it ever reached the kernel.
			taken++
			continue
		}

		sqe := d.ring.GetSQE()
		if sqe == nil {
			if !submitOnFull {
				break
			}
			if _, err := d.ring.SubmitAndWait(0); err != nil {
				break
			}
			if sqe = d.ring.GetSQE(); sqe == nil {
				break
			}
		}
		e.op.Prepare(sqe)
		sqe.UserData = idx
		taken++
	}

	if taken > 0 {
		d.pending = append(d.pending[:0], d.pending[taken:]...)
	}
	if len(d.pending) > 0 && d.obs != nil {
		d.obs.ObserveBacklogPark(len(d.pending))
	}
}

// reapLocked drains the completion queue in batches and dispatches each
// entry to its slot.
func (d *Driver) reapLocked() {
	var cqes [constants.CQEBatchSize]*giouring.CompletionQueueEvent
	for {
		n := d.ring.PeekBatchCQE(cqes[:])
		for _, cqe := range cqes[:n] {
			d.dispatchLocked(cqe)
		}
		d.ring.CQAdvance(n)
		if n < uint32(len(cqes)) {
			return
		}
	}
}

func (d *Driver) dispatchLocked(cqe *giouring.CompletionQueueEvent) {
	idx := cqe.UserData
	e := d.ops.get(int(idx))
	if e == nil {
		// Completion for a slot we no longer track, typically the tail
		// of a canceled operation. Drop it and move on.
		if d.obs != nil {
			d.obs.ObserveOrphan()
		}
		if d.log != nil {
			d.log.Debugf("dropped completion for dead slot %d res=%d", idx, cqe.Res)
		}
		return
	}

	if e.canceled {
		if disc, ok := e.op.(Discarder); ok {
			disc.Discard(cqe.Res, cqe.Flags)
		}
		return
	}

	if d.obs != nil {
		d.obs.ObserveResolve()
	}
	switch e.op.Resolve(cqe.Res, cqe.Flags) {
	case StatusArmed:
		// Multi-shot still registered with the kernel; nothing to do.

	case StatusRearm:
		sqe := d.ring.GetSQE()
		if sqe == nil {
			d.pending = append(d.pending, idx)
			if d.obs != nil {
				d.obs.ObserveBacklogPark(len(d.pending))
			}
		} else {
			e.op.Prepare(sqe)
			sqe.UserData = idx
		}
		if d.obs != nil {
			d.obs.ObserveRearm()
		}

	case StatusFinalized:
		d.removeLocked(int(idx))
	}
}

// removeLocked frees a slot and releases whatever memory the operation
// pinned for the kernel.
func (d *Driver) removeLocked(idx int) {
	op := d.ops.remove(idx)
	if op == nil {
		return
	}
	if r, ok := op.(Releaser); ok {
		r.Release()
	}
}

// finishCancelLocked is called by a cancel operation's resolve once the
// kernel has acked the cancel: the target slot (still marked canceled)
// can now be freed, kernel references to its memory being gone.
func (d *Driver) finishCancelLocked(target uint64) {
	if e := d.ops.get(int(target)); e != nil && e.canceled {
		d.removeLocked(int(target))
	}
}

// temporaryErrno reports whether an io_uring_enter errno should be
// retried on the next pump iteration rather than treated as fatal.
func temporaryErrno(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.EINTR, syscall.EAGAIN, syscall.EBUSY, syscall.ETIME, syscall.ETIMEDOUT:
		return true
	}
	return false
}
