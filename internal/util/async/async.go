package async

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach calls fn for every item with at most limit calls in flight and
// returns once all of them have finished. A limit below 1 means no bound.
//
// Unlike errgroup.WithContext, one failing call does not cancel the
// others: every item runs to completion. The first error, in completion
// order, is returned.
func ForEach[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, item := range items {
		g.Go(func() error {
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
