package uring

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextPlumbing(t *testing.T) {
	d := &Driver{}
	ctx := WithContext(context.Background(), d)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Same(t, d, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)

	require.Same(t, d, Acquire(ctx))
}

func TestBindIsPerThread(t *testing.T) {
	skipIfUnsupported(t)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d1, err := Bind(Config{Entries: 8})
	require.NoError(t, err)
	d2, err := Bind(Config{Entries: 8})
	require.NoError(t, err)
	require.Same(t, d1, d2, "same thread must get the same driver")

	// A pinned thread resolves to its own driver.
	require.Same(t, d1, Current())

	other := make(chan *Driver)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		d, err := Bind(Config{Entries: 8})
		if err != nil {
			other <- nil
			return
		}
		defer func() {
			if own := Unbind(); own != nil {
				own.Close()
			}
		}()
		other <- d
	}()
	require.NotSame(t, d1, <-other, "different threads must get different drivers")

	if own := Unbind(); own != nil {
		own.Close()
	}
}
