// Package uio is a Linux-only, completion-based asynchronous networking
// runtime built on io_uring.
//
// Unlike readiness-based runtimes (epoll and friends), every socket
// operation here is submitted to the kernel up front, together with the
// memory it will read or write, and resolves when the kernel reports the
// matching completion. The moving parts:
//
//   - internal/uring: the per-worker driver owning a ring, a table of
//     in-flight operations keyed by small stable slot indexes, and a
//     submission backlog. One pump iteration submits, waits briefly, and
//     dispatches completions.
//   - net: TCP listener/stream and UDP socket façades. Each method
//     registers one operation (accept, accept-multi, connect, recv,
//     send, recvmsg, sendmsg) and suspends the calling goroutine until
//     the driver resolves it.
//   - executor: a pool of workers, each pinned to an OS thread with its
//     own driver, alternating between driving the ring and draining the
//     shared task queue. BlockOn drives the calling thread's driver
//     until a single task finishes.
//
// Requires a kernel with multishot accept and cancel-by-user-data,
// effectively Linux 5.19+, targeted at 6.x.
package uio
