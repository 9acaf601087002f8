// Package executor runs tasks on a pool of workers, each of which owns
// an io_uring driver pinned to its OS thread. A worker alternates
// between driving one iteration of its ring and draining the shared
// task queue; tasks run as goroutines carrying their worker's driver in
// the context, so their socket operations land on that worker's ring.
package executor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gopkg/util/gopool"
	"golang.org/x/sys/unix"

	uio "github.com/ehrlich-b/go-uio"
	"github.com/ehrlich-b/go-uio/internal/interfaces"
	"github.com/ehrlich-b/go-uio/internal/logging"
	"github.com/ehrlich-b/go-uio/internal/uring"
)

// Config configures a worker pool.
type Config struct {
	// Workers is the number of worker threads. Defaults to GOMAXPROCS.
	Workers int

	// RingEntries is the queue depth of each worker's ring. Defaults to
	// DefaultRingEntries.
	RingEntries uint32

	// NamePrefix labels workers in log output.
	NamePrefix string

	// CPUAffinity optionally pins workers to CPUs, round-robin:
	// worker N runs on CPUAffinity[N % len(CPUAffinity)].
	CPUAffinity []int

	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Pool is a handle on a running worker pool.
type Pool struct {
	state *poolState
}

type poolState struct {
	mu        sync.Mutex
	queue     []func(context.Context)
	accepting bool
	stopping  bool

	activeTasks atomic.Int64
	workers     sync.WaitGroup
	cfg         Config
}

// NewPool starts the workers and returns once every worker has its
// driver up. A worker that cannot create its ring fails the whole pool.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default().Component("executor")
	}

	s := &poolState{cfg: cfg, accepting: true}
	started := make(chan error, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		s.workers.Add(1)
		go s.work(i, started)
	}

	var firstErr error
	for i := 0; i < cfg.Workers; i++ {
		if err := <-started; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		s.mu.Lock()
		s.accepting = false
		s.stopping = true
		s.mu.Unlock()
		s.workers.Wait()
		return nil, uio.WrapError("pool", firstErr)
	}
	return &Pool{state: s}, nil
}

// Spawn enqueues a task. The task runs on one of the workers' drivers
// and executes concurrently with every other active task. Panics if the
// pool has been closed.
func (p *Pool) Spawn(task func(ctx context.Context)) {
	s := p.state
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		panic(uio.NewError("spawn", uio.ErrCodeShutdown, "spawn on closed pool"))
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()
}

// Close broadcasts shutdown: no further Spawn calls are accepted and
// each worker exits once the queue and in-flight tasks have drained.
func (p *Pool) Close() {
	s := p.state
	s.mu.Lock()
	s.accepting = false
	s.stopping = true
	s.mu.Unlock()
}

// Wait blocks until every worker has exited. Callers normally Close
// first; Wait without Close blocks until someone does.
func (p *Pool) Wait() {
	p.state.workers.Wait()
}

// work is one worker's main loop, pinned to its OS thread for the
// lifetime of its driver.
func (s *poolState) work(idx int, started chan<- error) {
	defer s.workers.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(s.cfg.CPUAffinity) > 0 {
		cpu := s.cfg.CPUAffinity[idx%len(s.cfg.CPUAffinity)]
		var mask unix.CPUSet
		mask.Set(cpu)
		if err := unix.SchedSetaffinity(0, &mask); err != nil && s.cfg.Logger != nil {
			// Not fatal, continue without affinity.
			s.cfg.Logger.Printf("%sworker %d: failed to set CPU affinity to %d: %v",
				s.cfg.NamePrefix, idx, cpu, err)
		}
	}

	d, err := uring.Bind(uring.Config{
		Entries:  s.cfg.RingEntries,
		Logger:   s.cfg.Logger,
		Observer: s.cfg.Observer,
	})
	started <- err
	if err != nil {
		return
	}
	defer func() {
		if own := uring.Unbind(); own != nil {
			own.Close()
		}
	}()

	if s.cfg.Logger != nil {
		s.cfg.Logger.Debugf("%sworker %d: loop started", s.cfg.NamePrefix, idx)
	}

	for {
		// Drive one iteration of this worker's ring. An unexpected
		// submit errno means the ring is broken; nothing sensible can
		// continue on this worker.
		if err := d.Run(); err != nil {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Printf("%sworker %d: driver failed: %v", s.cfg.NamePrefix, idx, err)
			}
			panic(uio.WrapError("driver", err))
		}

		if s.dispatch(d) {
			break
		}
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Debugf("%sworker %d: loop stopped", s.cfg.NamePrefix, idx)
	}
}

// dispatch drains the shared queue under a short lock and launches each
// task with this worker's driver stamped into its context. Reports
// whether the worker should exit: shutdown was requested, nothing is
// queued, and no task is still running anywhere in the pool (a running
// task may yet need some worker's ring pumped).
func (s *poolState) dispatch(d *uring.Driver) (stop bool) {
	s.mu.Lock()
	tasks := s.queue
	s.queue = nil
	stop = s.stopping && len(tasks) == 0 && s.activeTasks.Load() == 0
	s.mu.Unlock()

	for _, task := range tasks {
		task := task
		ctx := uring.WithContext(context.Background(), d)
		s.activeTasks.Add(1)
		gopool.CtxGo(ctx, func() {
			defer s.activeTasks.Add(-1)
			task(ctx)
		})
	}
	return stop
}
