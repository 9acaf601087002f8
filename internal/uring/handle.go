package uring

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// The process-wide handle grants, per OS thread, lazy access to exactly
// one driver. Worker threads (and BlockOn callers) lock themselves to a
// thread and Bind; code running outside the runtime falls back to a
// shared driver pumped by its own pinned goroutine.
var processHandle = &handle{drivers: make(map[int]*Driver)}

type handle struct {
	mu      sync.RWMutex
	drivers map[int]*Driver

	fallbackOnce sync.Once
	fallback     *Driver
}

// Bind returns the calling thread's driver, constructing it on first
// access. The caller must have pinned itself with runtime.LockOSThread;
// the mapping is keyed by kernel thread id and would otherwise dangle.
func Bind(cfg Config) (*Driver, error) {
	tid := unix.Gettid()

	processHandle.mu.RLock()
	d := processHandle.drivers[tid]
	processHandle.mu.RUnlock()
	if d != nil {
		return d, nil
	}

	d, err := NewDriver(cfg)
	if err != nil {
		return nil, err
	}

	processHandle.mu.Lock()
	if existing := processHandle.drivers[tid]; existing != nil {
		// Lost a construction race on the same tid; keep the winner.
		processHandle.mu.Unlock()
		d.Close()
		return existing, nil
	}
	processHandle.drivers[tid] = d
	processHandle.mu.Unlock()
	return d, nil
}

// Unbind removes the calling thread's mapping and returns the driver
// (nil if there was none). The caller owns closing it. Workers call
// this on the way out, before unlocking their thread.
func Unbind() *Driver {
	tid := unix.Gettid()
	processHandle.mu.Lock()
	d := processHandle.drivers[tid]
	delete(processHandle.drivers, tid)
	processHandle.mu.Unlock()
	return d
}

// Current returns the driver operations on this thread should register
// with: the thread's own driver when one is bound, otherwise the shared
// fallback. The fallback is constructed on first use with default
// configuration and pumped by a dedicated pinned goroutine for the rest
// of the process lifetime; an unrecoverable pump error there is fatal.
func Current() *Driver {
	tid := unix.Gettid()
	processHandle.mu.RLock()
	d := processHandle.drivers[tid]
	processHandle.mu.RUnlock()
	if d != nil {
		return d
	}
	return fallbackDriver()
}

func fallbackDriver() *Driver {
	h := processHandle
	h.fallbackOnce.Do(func() {
		d, err := NewDriver(Config{})
		if err != nil {
			panic("uio: failed to configure fallback driver: " + err.Error())
		}
		h.fallback = d
		go func() {
			runtime.LockOSThread()
			for {
				if err := d.Run(); err != nil {
					panic("uio: fallback driver failed: " + err.Error())
				}
			}
		}()
	})
	return h.fallback
}

type ctxKey struct{}

// WithContext stamps d into ctx. The executor uses this so a task's
// operations land on the ring of the worker that launched it even as
// the task's goroutine migrates between threads.
func WithContext(ctx context.Context, d *Driver) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext extracts a driver stamped with WithContext.
func FromContext(ctx context.Context) (*Driver, bool) {
	d, ok := ctx.Value(ctxKey{}).(*Driver)
	return d, ok
}

// Acquire resolves the driver for a new operation: the context's driver
// if one was stamped, else the current thread's, else the fallback.
func Acquire(ctx context.Context) *Driver {
	if d, ok := FromContext(ctx); ok {
		return d
	}
	return Current()
}
