package runtime

import (
	"github.com/brimdata/zframe/pkg/hilbert"
	"golang.org/x/sync/errgroup"
)

// ParallelFor calls fn(i) for i in [0, n) using at most c.Parallelism()
// goroutines and returns after every call has finished.  The first error
// is returned; calls not yet started when an error occurs are skipped.
func ParallelFor(c *Context, n int, fn func(i int) error) error {
	return ParallelForLimit(c, n, c.Parallelism(), fn)
}

// ParallelForLimit is ParallelFor with an explicit worker limit.
func ParallelForLimit(c *Context, n, limit int, fn func(i int) error) error {
	if limit < 1 {
		limit = 1
	}
	group, ctx := errgroup.WithContext(c)
	group.SetLimit(limit)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return fn(i)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return c.CheckCancel()
}

// InParallel runs fn(thread, nthreads) on c.Parallelism() goroutines.
func InParallel(c *Context, fn func(thread, nthreads int) error) error {
	n := c.Parallelism()
	return ParallelForLimit(c, n, n, func(i int) error {
		return fn(i, n)
	})
}

// BlockedParallelFor runs hilbert.BlockedParallelFor under c, reporting a
// traversal stopped by Cancel as ErrCancelled.
func BlockedParallelFor(c *Context, n, blockSize int, preamble func([]hilbert.Coord) error, body func(hilbert.Coord) error) error {
	err := hilbert.BlockedParallelFor(c, n, blockSize, preamble, body)
	if err != nil && c.Cancelled() {
		return ErrCancelled
	}
	return err
}
