package sync

import (
	"errors"
	"sync"
)

// ErrDisconnected is reported by Sender.Push after the receiving side
// has been closed. A multi-shot operation observing it must finalize
// itself.
var ErrDisconnected = errors.New("uio: multishot receiver closed")

type multishotCore[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	waker  Waker
}

// Sender is the producer half of a multi-shot result channel. It is held
// by the in-flight operation and pushed to from the driver pump.
type Sender[T any] struct {
	core *multishotCore[T]
}

// Receiver is the consumer half of a multi-shot result channel.
type Receiver[T any] struct {
	core *multishotCore[T]
}

// NewMultiShot returns a connected sender/receiver pair with an
// unbounded FIFO between them.
func NewMultiShot[T any]() (*Sender[T], *Receiver[T]) {
	core := &multishotCore[T]{}
	return &Sender[T]{core: core}, &Receiver[T]{core: core}
}

// Push appends val and invokes any installed waker. Returns
// ErrDisconnected if the receiver is closed; the value is dropped.
func (s *Sender[T]) Push(val T) error {
	c := s.core
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.queue = append(c.queue, val)
	w := c.waker
	c.waker = nil
	c.mu.Unlock()

	if w != nil {
		w()
	}
	return nil
}

// TryRecv performs a non-blocking receive. ok reports whether a value
// was extracted; closed reports that the receiver was closed and no
// further values will be delivered.
func (r *Receiver[T]) TryRecv() (val T, ok bool, closed bool) {
	c := r.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		val = c.queue[0]
		c.queue = c.queue[1:]
		return val, true, false
	}
	return val, false, c.closed
}

// SetWaker installs w, replacing any previous waker. As with OneShot,
// callers re-check TryRecv after installing.
func (r *Receiver[T]) SetWaker(w Waker) {
	c := r.core
	c.mu.Lock()
	c.waker = w
	c.mu.Unlock()
}

// Close drops the consumer side. Queued values are discarded and
// subsequent Push calls report ErrDisconnected.
func (r *Receiver[T]) Close() {
	c := r.core
	c.mu.Lock()
	c.closed = true
	c.queue = nil
	c.waker = nil
	c.mu.Unlock()
}
