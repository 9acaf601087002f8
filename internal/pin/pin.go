// Package pin is the seam where Go memory is handed to the kernel.
//
// Submissions embed raw addresses that the kernel dereferences
// asynchronously, possibly while the submitting goroutine has long moved
// on to another thread. Every address placed in a submission queue entry
// must therefore point at memory that is pinned for the whole life of the
// in-flight operation. The helpers here make that contract explicit: a
// Held pins its pointees with a runtime.Pinner until Release, and the
// address accessors are the only sanctioned pointer-to-uintptr
// conversions in the module.
package pin

import (
	"runtime"
	"unsafe"
)

// Held keeps a set of objects pinned at fixed addresses.
//
// The zero value is ready for use. Release must be called exactly once,
// after the kernel is known to hold no reference to the pinned memory
// (the operation resolved Finalized, or its cancellation was acked).
type Held struct {
	pinner runtime.Pinner
}

// Pin pins each pointee for the lifetime of the Held. The arguments must
// be pointers.
func (h *Held) Pin(ptrs ...any) {
	for _, p := range ptrs {
		h.pinner.Pin(p)
	}
}

// Release unpins everything held. Safe to call on a zero Held.
func (h *Held) Release() {
	h.pinner.Unpin()
}

// Base returns the address of the first byte of b for use in a
// submission. The slice must be non-empty and must stay pinned (via a
// Held that pinned &b[0]) until the operation completes.
func Base(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// Addr returns the address of p for use in a submission. The pointee
// must stay pinned until the operation completes.
func Addr[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}
