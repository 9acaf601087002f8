package sockaddr

import (
	"net/netip"
	"syscall"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAddrPortRoundTrip(t *testing.T) {
	tests := []string{
		"127.0.0.1:8080",
		"0.0.0.0:1",
		"192.168.17.4:65535",
		"[::1]:9092",
		"[2001:db8::42]:443",
		"[::]:0",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			ap := netip.MustParseAddrPort(s)
			st := FromAddrPort(ap)
			require.Equal(t, ap, st.AddrPort())
		})
	}
}

func TestEncodedLengths(t *testing.T) {
	v4 := FromAddrPort(netip.MustParseAddrPort("10.0.0.1:53"))
	require.Equal(t, uint32(syscall.SizeofSockaddrInet4), v4.Len())

	v6 := FromAddrPort(netip.MustParseAddrPort("[::1]:53"))
	require.Equal(t, uint32(syscall.SizeofSockaddrInet6), v6.Len())

	empty := New()
	require.Equal(t, uint32(syscall.SizeofSockaddrAny), empty.Len())
}

func TestEmptyStorageDecodesZero(t *testing.T) {
	require.False(t, New().AddrPort().IsValid())
}

func TestPortByteOrder(t *testing.T) {
	// 0x1234 must land in network byte order regardless of host
	// endianness.
	st := FromAddrPort(netip.MustParseAddrPort("127.0.0.1:4660"))
	raw := (*syscall.RawSockaddrInet4)(unsafe.Pointer(&st.raw))
	b := (*[2]byte)(unsafe.Pointer(&raw.Port))
	require.Equal(t, byte(0x12), b[0])
	require.Equal(t, byte(0x34), b[1])
}

func TestMsgLayout(t *testing.T) {
	bufs := [][]byte{
		make([]byte, 2),
		nil, // empty buffers are skipped
		make([]byte, 4),
	}
	m := NewMsg(bufs, New())

	hdr := m.Hdr()
	require.EqualValues(t, 2, hdr.Iovlen)
	require.NotNil(t, hdr.Iov)
	require.NotNil(t, hdr.Name)
	require.Equal(t, uint32(syscall.SizeofSockaddrAny), hdr.Namelen)

	require.EqualValues(t, 2, m.iovs[0].Len)
	require.EqualValues(t, 4, m.iovs[1].Len)
}

func TestMsgWithoutAddr(t *testing.T) {
	m := NewMsg([][]byte{make([]byte, 8)}, nil)
	require.Nil(t, m.Hdr().Name)
	require.Zero(t, m.Hdr().Namelen)
	require.Nil(t, m.Addr())
}
