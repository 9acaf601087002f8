package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOneShotDeliversExactlyOnce(t *testing.T) {
	cell := NewOneShot[int]()

	_, ok := cell.Take()
	require.False(t, ok, "empty cell must not deliver")

	cell.Complete(42)

	v, ok := cell.Take()
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok = cell.Take()
	require.False(t, ok, "second take must be empty")
}

func TestOneShotDoubleCompletePanics(t *testing.T) {
	cell := NewOneShot[string]()
	cell.Complete("first")
	require.Panics(t, func() { cell.Complete("second") })
}

func TestOneShotWakerInvokedOnComplete(t *testing.T) {
	cell := NewOneShot[int]()
	woken := make(chan struct{}, 1)
	cell.SetWaker(func() { woken <- struct{}{} })

	cell.Complete(1)

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("waker not invoked")
	}
}

func TestOneShotWakerAfterComplete(t *testing.T) {
	// A waker installed after completion is never invoked; the caller's
	// follow-up take observes the value instead.
	cell := NewOneShot[int]()
	cell.Complete(7)

	cell.SetWaker(func() { t.Error("stale waker invoked") })
	v, ok := cell.Take()
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestOneShotWakerReplaced(t *testing.T) {
	cell := NewOneShot[int]()

	cell.SetWaker(func() { t.Error("replaced waker invoked") })
	woken := make(chan struct{}, 1)
	cell.SetWaker(func() { woken <- struct{}{} })

	cell.Complete(1)
	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("latest waker not invoked")
	}
}

func TestOneShotCrossGoroutine(t *testing.T) {
	cell := NewOneShot[int]()
	done := make(chan int)

	go func() {
		notify := make(chan struct{}, 1)
		for {
			if v, ok := cell.Take(); ok {
				done <- v
				return
			}
			cell.SetWaker(func() {
				select {
				case notify <- struct{}{}:
				default:
				}
			})
			if v, ok := cell.Take(); ok {
				done <- v
				return
			}
			<-notify
		}
	}()

	time.Sleep(10 * time.Millisecond)
	cell.Complete(99)

	select {
	case v := <-done:
		require.Equal(t, 99, v)
	case <-time.After(time.Second):
		t.Fatal("consumer never woke")
	}
}
