package async

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// ForEach runs fn for every item with at most limit calls in flight. The first
// error cancels the context passed to the remaining calls and is returned.
// A panic inside fn is recovered and returned as an error.
func ForEach[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) error) error {
	if limit < 1 {
		limit = 1
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, item := range items {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					ctxlog.From(ctx).Error("Panic in worker",
						"recover", r,
						"stack", string(stack),
					)
					err = goerr.New(fmt.Sprintf("panic in worker: %v", r), goerr.V("index", i))
				}
			}()

			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i, item)
		})
	}

	return eg.Wait()
}

// Map runs fn for every item like ForEach and collects the results in input
// order.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	err := ForEach(ctx, limit, items, func(ctx context.Context, i int, item T) error {
		r, err := fn(ctx, item)
		if err != nil {
			return err
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
