package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FanOut calls fn for every item with at most limit calls in flight and
// returns the results in item order. The first error cancels the context
// passed to the remaining calls and is returned once all calls have ended.
// A limit <= 0 means unbounded.
func FanOut[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, i, item)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
