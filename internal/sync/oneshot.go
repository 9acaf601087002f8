// Package sync provides the result channels that hand completion values
// from a driver back to suspended tasks.
package sync

import "sync"

// Waker is invoked to resume whichever goroutine is waiting on a result
// channel. Wakers are replaced on every wait pass so the most recent
// waiter is always the one resumed; see OneShot.SetWaker.
type Waker func()

// OneShot is a single-value result cell shared between the driver (the
// producer, via an operation's resolve) and a task (the consumer).
//
// The producer calls Complete exactly once. Calling it twice is a bug in
// the operation and panics. The consumer alternates Take and SetWaker:
// if Complete happened before Take, Take observes the value; if SetWaker
// was installed before Complete, Complete invokes it.
type OneShot[T any] struct {
	mu        sync.Mutex
	val       *T
	completed bool
	waker     Waker
}

// NewOneShot returns an empty cell.
func NewOneShot[T any]() *OneShot[T] {
	return &OneShot[T]{}
}

// Complete stores val and invokes any installed waker. Panics if
// Complete was already called, even if that value has since been taken.
func (o *OneShot[T]) Complete(val T) {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		panic("uio: oneshot completed twice")
	}
	o.completed = true
	o.val = &val
	w := o.waker
	o.waker = nil
	o.mu.Unlock()

	if w != nil {
		w()
	}
}

// Take extracts the value if one is present. A value is delivered
// exactly once; subsequent calls report false.
func (o *OneShot[T]) Take() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.val == nil {
		var zero T
		return zero, false
	}
	v := *o.val
	o.val = nil
	return v, true
}

// SetWaker installs w, replacing any previous waker. Callers must
// re-check Take after installing: a Complete that raced ahead of
// SetWaker will not invoke w.
func (o *OneShot[T]) SetWaker(w Waker) {
	o.mu.Lock()
	o.waker = w
	o.mu.Unlock()
}
