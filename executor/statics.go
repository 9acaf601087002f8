package executor

import (
	"context"
	"sync"
)

var (
	defaultMu   sync.Mutex
	defaultPool *Pool
)

// SetDefault installs the process-wide pool used by the package-level
// Spawn.
func SetDefault(p *Pool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultPool = p
}

// Default returns the process-wide pool, or nil if none was installed.
func Default() *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultPool
}

// Spawn enqueues a task on the process-wide pool. The task executes
// concurrently with other active tasks and cannot return a value; hand
// results back over channels or result cells. Panics if SetDefault has
// not been called.
func Spawn(task func(ctx context.Context)) {
	p := Default()
	if p == nil {
		panic("uio: executor not configured, call executor.SetDefault first")
	}
	p.Spawn(task)
}
