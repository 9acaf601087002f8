// Package sockaddr marshals between Go address types and the raw
// kernel socket-address structures embedded in submissions.
//
// The kernel reads and writes these structures asynchronously, so every
// Storage referenced by an in-flight submission must be heap-allocated
// and pinned until the matching completion (or cancel ack) is observed.
// Callers own that contract; this package only provides the layouts.
package sockaddr

import (
	"encoding/binary"
	"net/netip"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uio/internal/pin"
)

// Storage is a tagged kernel socket address sized for the larger of the
// IPv4/IPv6 variants, plus the length cell the kernel updates on
// address-returning operations.
type Storage struct {
	raw syscall.RawSockaddrAny
	len uint32
}

// New returns an empty Storage with the length cell primed to the full
// structure size, ready to receive a peer address from the kernel.
func New() *Storage {
	return &Storage{len: syscall.SizeofSockaddrAny}
}

// FromAddrPort encodes ap into kernel layout. The returned Storage
// carries the exact encoded length.
func FromAddrPort(ap netip.AddrPort) *Storage {
	s := &Storage{}
	if ap.Addr().Is4() {
		sa := (*syscall.RawSockaddrInet4)(unsafe.Pointer(&s.raw))
		sa.Family = unix.AF_INET
		putPort(&sa.Port, ap.Port())
		sa.Addr = ap.Addr().As4()
		s.len = syscall.SizeofSockaddrInet4
	} else {
		sa := (*syscall.RawSockaddrInet6)(unsafe.Pointer(&s.raw))
		sa.Family = unix.AF_INET6
		putPort(&sa.Port, ap.Port())
		sa.Addr = ap.Addr().As16()
		s.len = syscall.SizeofSockaddrInet6
	}
	return s
}

// AddrPort decodes the stored address. Returns the zero AddrPort for
// families other than AF_INET/AF_INET6 (e.g. a recvmsg on which the
// kernel reported no source address).
func (s *Storage) AddrPort() netip.AddrPort {
	switch s.raw.Addr.Family {
	case unix.AF_INET:
		sa := (*syscall.RawSockaddrInet4)(unsafe.Pointer(&s.raw))
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), getPort(&sa.Port))
	case unix.AF_INET6:
		sa := (*syscall.RawSockaddrInet6)(unsafe.Pointer(&s.raw))
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), getPort(&sa.Port))
	default:
		return netip.AddrPort{}
	}
}

// Ptr returns the address of the raw structure for a submission. The
// Storage must be pinned by the owning operation.
func (s *Storage) Ptr() uintptr {
	return pin.Addr(&s.raw)
}

// LenPtr returns the address of the length cell for opcodes that take a
// socklen pointer (accept).
func (s *Storage) LenPtr() uintptr {
	return pin.Addr(&s.len)
}

// Len returns the current value of the length cell.
func (s *Storage) Len() uint32 {
	return s.len
}

// Pin pins the raw structure and length cell into h.
func (s *Storage) Pin(h *pin.Held) {
	h.Pin(&s.raw, &s.len)
}

// Ports in sockaddr structures are in network byte order regardless of
// host endianness; go through a byte view rather than shifting.
func putPort(field *uint16, port uint16) {
	binary.BigEndian.PutUint16((*[2]byte)(unsafe.Pointer(field))[:], port)
}

func getPort(field *uint16) uint16 {
	return binary.BigEndian.Uint16((*[2]byte)(unsafe.Pointer(field))[:])
}
