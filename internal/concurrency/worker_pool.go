package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerFn handles task number index.
type WorkerFn func(ctx context.Context, index int) error

// ForEach runs fn for every index in [0, tasks) with at most limit calls in
// flight and waits for all of them. The first error cancels the context seen
// by the remaining tasks and is returned.
func ForEach(ctx context.Context, limit int, tasks int, fn WorkerFn) error {
	if tasks == 0 {
		return ctx.Err()
	}
	if limit <= 0 || limit > tasks {
		limit = tasks
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < tasks; i++ {
		if gctx.Err() != nil {
			break
		}
		idx := i
		g.Go(func() error {
			return fn(gctx, idx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
