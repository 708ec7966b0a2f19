// Package workerpool provides a bounded fail-fast fan-out helper.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Process runs fn for every item on at most workers goroutines. The first
// error cancels the group's context and is returned after all started work
// finishes; results of other in-flight calls are discarded.
func Process[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
