package curate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach calls fn for every index in [0, n) on up to jobs goroutines.
// It stops scheduling work once ctx is done or fn fails.
func forEach(ctx context.Context, jobs, n int, fn func(i int) error) error {
	if jobs < 1 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// gctx is always canceled once Wait returns; only the caller's ctx matters.
	return ctx.Err()
}
