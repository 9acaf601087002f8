package executor

import (
	"context"
	"runtime"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/ehrlich-b/go-uio/internal/uring"
)

// BlockOn runs fn to completion, driving the calling thread's driver in
// the meantime, and returns fn's error. It is the usual way for main to
// enter the runtime: the calling thread is pinned and lazily acquires
// its own driver, fn runs as a task whose operations land on that
// driver, and the loop pumps until fn finishes.
//
// Not meant for computation-heavy work; spawn that on a Pool from
// inside fn. Panics if the driver cannot be created or fails
// unrecoverably.
func BlockOn(fn func(ctx context.Context) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// The thread keeps its driver across BlockOn calls; teardown is
	// implicit on process exit.
	d, err := uring.Bind(uring.Config{})
	if err != nil {
		panic("uio: block_on failed to configure driver: " + err.Error())
	}

	ctx := uring.WithContext(context.Background(), d)
	done := make(chan error, 1)
	gopool.CtxGo(ctx, func() {
		done <- fn(ctx)
	})

	for {
		if err := d.Run(); err != nil {
			panic("uio: block_on driver failed: " + err.Error())
		}
		select {
		case err := <-done:
			return err
		default:
		}
	}
}
