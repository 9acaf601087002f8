package sockaddr

import (
	"syscall"
	"unsafe"

	"github.com/ehrlich-b/go-uio/internal/pin"
)

// Msg bundles the scatter/gather descriptors for a sendmsg/recvmsg
// submission: the message header, the iovec array it points at, and the
// optional source/destination address. All of it must stay pinned while
// the operation is in flight; Pin covers every piece, including the
// caller's buffers.
type Msg struct {
	hdr  syscall.Msghdr
	iovs []syscall.Iovec
	addr *Storage
	bufs [][]byte
}

// NewMsg builds a message header over bufs. addr may be nil for
// connected sockets (the name pointer is left null). Empty buffers are
// skipped; at least one buffer must be non-empty.
func NewMsg(bufs [][]byte, addr *Storage) *Msg {
	m := &Msg{addr: addr, bufs: bufs}
	m.iovs = make([]syscall.Iovec, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		m.iovs = append(m.iovs, syscall.Iovec{
			Base: &b[0],
			Len:  uint64(len(b)),
		})
	}
	if addr != nil {
		m.hdr.Name = (*byte)(unsafe.Pointer(&addr.raw))
		m.hdr.Namelen = addr.len
	}
	if len(m.iovs) > 0 {
		m.hdr.Iov = &m.iovs[0]
		m.hdr.Iovlen = uint64(len(m.iovs))
	}
	return m
}

// Hdr returns the header for opcode preparation.
func (m *Msg) Hdr() *syscall.Msghdr {
	return &m.hdr
}

// Addr returns the address storage bound to the message, or nil.
func (m *Msg) Addr() *Storage {
	return m.addr
}

// Pin pins the header, iovec array, every referenced buffer, and the
// address storage (if any) into h.
func (m *Msg) Pin(h *pin.Held) {
	h.Pin(&m.hdr)
	if len(m.iovs) > 0 {
		h.Pin(&m.iovs[0])
	}
	for _, b := range m.bufs {
		if len(b) > 0 {
			h.Pin(&b[0])
		}
	}
	if m.addr != nil {
		m.addr.Pin(h)
	}
}
