package executor_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-uio/executor"
	"github.com/ehrlich-b/go-uio/net"

	"github.com/ehrlich-b/go-uio/internal/uring"
)

func skipIfUnsupported(t *testing.T) {
	t.Helper()
	d, err := uring.NewDriver(uring.Config{Entries: 8})
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	d.Close()
}

func TestPoolRunsTasks(t *testing.T) {
	skipIfUnsupported(t)

	pool, err := executor.NewPool(executor.Config{Workers: 2})
	require.NoError(t, err)

	var ran atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		pool.Spawn(func(ctx context.Context) {
			if ran.Add(1) == 16 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tasks did not run")
	}

	pool.Close()
	pool.Wait()
}

func TestTaskContextCarriesDriver(t *testing.T) {
	skipIfUnsupported(t)

	pool, err := executor.NewPool(executor.Config{Workers: 1})
	require.NoError(t, err)
	defer func() {
		pool.Close()
		pool.Wait()
	}()

	got := make(chan bool, 1)
	pool.Spawn(func(ctx context.Context) {
		_, ok := uring.FromContext(ctx)
		got <- ok
	})
	require.True(t, <-got, "task context must carry the worker's driver")
}

func TestSpawnAfterClosePanics(t *testing.T) {
	skipIfUnsupported(t)

	pool, err := executor.NewPool(executor.Config{Workers: 1})
	require.NoError(t, err)
	pool.Close()
	pool.Wait()

	require.Panics(t, func() {
		pool.Spawn(func(ctx context.Context) {})
	})
}

func TestWaitDrainsInFlightTasks(t *testing.T) {
	skipIfUnsupported(t)

	pool, err := executor.NewPool(executor.Config{Workers: 2})
	require.NoError(t, err)

	var finished atomic.Bool
	pool.Spawn(func(ctx context.Context) {
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
	})

	pool.Close()
	pool.Wait()
	require.True(t, finished.Load(), "Wait returned before in-flight task finished")
}

func TestBlockOnReturnsResult(t *testing.T) {
	skipIfUnsupported(t)

	err := executor.BlockOn(func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	sentinel := context.Canceled
	err = executor.BlockOn(func(ctx context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}

func TestBlockOnDrivesIO(t *testing.T) {
	skipIfUnsupported(t)

	err := executor.BlockOn(func(ctx context.Context) error {
		listener, err := net.Listen("[::1]:0")
		if err != nil {
			return err
		}
		defer listener.Close()

		done := make(chan error, 1)
		go func() {
			conn, err := listener.Accept(ctx)
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			buf := make([]byte, 8)
			n, err := conn.Recv(ctx, buf)
			if err != nil {
				done <- err
				return
			}
			_, err = conn.Send(ctx, buf[:n])
			done <- err
		}()

		conn, err := net.Dial(ctx, listener.Addr().String())
		if err != nil {
			return err
		}
		defer conn.Close()
		if _, err := conn.Send(ctx, []byte("ping")); err != nil {
			return err
		}
		buf := make([]byte, 8)
		if _, err := conn.Recv(ctx, buf); err != nil {
			return err
		}
		return <-done
	})
	require.NoError(t, err)
}

func TestDefaultPoolSpawn(t *testing.T) {
	skipIfUnsupported(t)

	require.Panics(t, func() {
		executor.SetDefault(nil)
		executor.Spawn(func(ctx context.Context) {})
	})

	pool, err := executor.NewPool(executor.Config{Workers: 1})
	require.NoError(t, err)
	executor.SetDefault(pool)
	defer executor.SetDefault(nil)

	done := make(chan struct{})
	executor.Spawn(func(ctx context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("default pool did not run task")
	}

	pool.Close()
	pool.Wait()
}

// A CPU-bound task that keeps yielding must not starve short I/O tasks:
// every round trip eventually completes.
func TestFairnessFloor(t *testing.T) {
	skipIfUnsupported(t)
	if testing.Short() {
		t.Skip("short mode")
	}

	pool, err := executor.NewPool(executor.Config{Workers: 2})
	require.NoError(t, err)

	listener, err := net.Listen("[::1]:0")
	require.NoError(t, err)
	defer listener.Close()

	serverCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	pool.Spawn(func(ctx context.Context) {
		incoming := listener.Incoming(ctx)
		defer incoming.Close()
		for {
			conn, err := incoming.Next(serverCtx)
			if err != nil {
				return
			}
			conn := conn
			go func() {
				defer conn.Close()
				buf := make([]byte, 4)
				if n, err := conn.Recv(ctx, buf); err == nil {
					_, _ = conn.Send(ctx, buf[:n])
				}
			}()
		}
	})

	var spinning atomic.Bool
	spinning.Store(true)
	pool.Spawn(func(ctx context.Context) {
		for spinning.Load() {
			runtime.Gosched()
		}
	})

	const tasks = 1000
	var completed atomic.Int32
	done := make(chan struct{})
	for i := 0; i < tasks; i++ {
		pool.Spawn(func(ctx context.Context) {
			conn, err := net.Dial(ctx, listener.Addr().String())
			if err != nil {
				return
			}
			defer conn.Close()
			if _, err := conn.Send(ctx, []byte("ping")); err != nil {
				return
			}
			buf := make([]byte, 4)
			if _, err := conn.Recv(ctx, buf); err != nil {
				return
			}
			if completed.Add(1) == tasks {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(60 * time.Second):
		t.Fatalf("only %d/%d I/O tasks completed alongside CPU-bound task", completed.Load(), tasks)
	}

	spinning.Store(false)
	stopServer()
	pool.Close()
	pool.Wait()
}
