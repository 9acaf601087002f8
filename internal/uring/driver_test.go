package uring

import (
	"testing"
	"time"

	"github.com/pawelgaczynski/giouring"
	"github.com/stretchr/testify/require"

	uio "github.com/ehrlich-b/go-uio"
)

// skipIfUnsupported skips kernel-dependent tests when io_uring is not
// available (old kernels, seccomp-restricted CI).
func skipIfUnsupported(t *testing.T) {
	t.Helper()
	d, err := NewDriver(Config{Entries: 8})
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	d.Close()
}

func newTestDriver(t *testing.T, cfg Config) *Driver {
	t.Helper()
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = 10 * time.Millisecond
	}
	d, err := NewDriver(cfg)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

// nopOp completes without touching any fd; the test analogue of a real
// operation.
type nopOp struct {
	resolved chan int32
}

func newNopOp() *nopOp {
	return &nopOp{resolved: make(chan int32, 1)}
}

func (o *nopOp) Prepare(sqe *giouring.SubmissionQueueEntry) {
	sqe.PrepareNop()
}

func (o *nopOp) Resolve(res int32, flags uint32) Status {
	o.resolved <- res
	return StatusFinalized
}

// pumpUntil drives the ring until cond holds or the deadline passes.
func pumpUntil(t *testing.T, d *Driver, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		require.NoError(t, d.Run())
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
	}
}

func TestRegisterResolvesAndFreesSlot(t *testing.T) {
	skipIfUnsupported(t)

	m := uio.NewMetrics()
	d := newTestDriver(t, Config{Entries: 8, Observer: m})

	ops := make([]*nopOp, 8)
	for i := range ops {
		ops[i] = newNopOp()
		d.Register(ops[i])
	}
	require.Equal(t, 8, d.InFlight())

	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })

	for _, op := range ops {
		select {
		case res := <-op.resolved:
			require.EqualValues(t, 0, res)
		default:
			t.Fatal("operation finalized without resolving")
		}
	}
	require.EqualValues(t, 8, m.Registered.Load())
	require.EqualValues(t, 8, m.Resolved.Load())
}

func TestSlotReuseAfterFinalize(t *testing.T) {
	skipIfUnsupported(t)

	d := newTestDriver(t, Config{Entries: 8})

	first := d.Register(newNopOp())
	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })

	second := d.Register(newNopOp())
	require.Equal(t, first, second, "freed slot must be reused")
	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })
}

func TestDistinctLiveSlots(t *testing.T) {
	skipIfUnsupported(t)

	d := newTestDriver(t, Config{Entries: 16})

	seen := make(map[uint64]bool)
	for i := 0; i < 8; i++ {
		slot := d.Register(newNopOp())
		require.False(t, seen[slot], "live operations must not share a slot")
		seen[slot] = true
	}
	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })
}

func TestDeregisterBeforeSubmission(t *testing.T) {
	skipIfUnsupported(t)

	d := newTestDriver(t, Config{Entries: 8})

	op := newNopOp()
	slot := d.Register(op)
	d.Deregister(slot)

	// The cancel resolves (with ENOENT, ignored) and takes the slot
	// with it; the canceled op must never deliver a value.
	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })
	select {
	case <-op.resolved:
		t.Fatal("canceled operation resolved")
	default:
	}
}

func TestDeregisterIsIdempotent(t *testing.T) {
	skipIfUnsupported(t)

	m := uio.NewMetrics()
	d := newTestDriver(t, Config{Entries: 8, Observer: m})

	slot := d.Register(newNopOp())
	d.Deregister(slot)
	d.Deregister(slot)
	d.Deregister(slot)

	require.EqualValues(t, 1, m.Cancels.Load(), "repeat deregister must be a no-op")
	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })

	// The slot is long gone; deregistering it again must not blow up.
	d.Deregister(slot)
}

func TestBacklogAbsorbsOverflow(t *testing.T) {
	skipIfUnsupported(t)

	m := uio.NewMetrics()
	d := newTestDriver(t, Config{Entries: 8, Observer: m})

	ops := make([]*nopOp, 64)
	for i := range ops {
		ops[i] = newNopOp()
		d.Register(ops[i])
	}

	pumpUntil(t, d, func() bool { return d.InFlight() == 0 })

	for _, op := range ops {
		select {
		case <-op.resolved:
		default:
			t.Fatal("overflowed operation never resolved")
		}
	}
	require.NotZero(t, m.BacklogParks.Load(), "64 submissions through an 8-deep ring must park at least once")
}

func TestRunWithNothingInFlight(t *testing.T) {
	skipIfUnsupported(t)

	d := newTestDriver(t, Config{Entries: 8})
	// An idle iteration times out internally and reports no error.
	require.NoError(t, d.Run())
	require.NoError(t, d.Run())
}
