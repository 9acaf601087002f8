package net

import (
	"context"

	uio "github.com/ehrlich-b/go-uio"
	usync "github.com/ehrlich-b/go-uio/internal/sync"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// outcome carries either an operation's value or its terminal error
// through the result channel.
type outcome[T any] struct {
	val T
	err error
}

// opHandle is the awaitable half of a registered single-shot operation:
// the result cell shared with the encoder, the slot for cancellation,
// and the notify channel the waker pokes.
type opHandle[T any] struct {
	driver *uring.Driver
	slot   uint64
	cell   *usync.OneShot[outcome[T]]
	notify chan struct{}
	done   bool
}

func newOpHandle[T any](d *uring.Driver) *opHandle[T] {
	return &opHandle[T]{
		driver: d,
		cell:   usync.NewOneShot[outcome[T]](),
		notify: make(chan struct{}, 1),
	}
}

// wake is the handle's waker. It is re-installed on every wait pass, so
// after a goroutine migrates between polls the most recent waiter is
// still the one resumed. Non-blocking: the notify channel holds one
// token.
func (h *opHandle[T]) wake() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// await parks the calling goroutine until the driver resolves the
// operation or ctx is done. Context expiry cancels: the slot is
// deregistered (best effort) and the handle is consumed; a canceled
// operation never produces a value.
func (h *opHandle[T]) await(ctx context.Context) (T, error) {
	var zero T
	if h.done {
		return zero, uio.NewError("await", uio.ErrCodeCanceled, "operation already consumed")
	}
	for {
		if out, ok := h.cell.Take(); ok {
			h.done = true
			return out.val, out.err
		}
		h.cell.SetWaker(h.wake)
		// Re-check: a resolve racing ahead of SetWaker will not have
		// seen the waker, but its value is already in the cell.
		if out, ok := h.cell.Take(); ok {
			h.done = true
			return out.val, out.err
		}
		select {
		case <-h.notify:
		case <-ctx.Done():
			h.done = true
			h.driver.Deregister(h.slot)
			return zero, ctx.Err()
		}
	}
}
