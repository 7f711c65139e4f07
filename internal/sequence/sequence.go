// Package sequence runs actions over a list of items one after another.
package sequence

import "context"

// ForEach calls fn for every item in order. The call for an item starts only
// after the previous call returned, so side effects are observed in item
// order. The first error stops the run and is returned as is; a cancelled
// context is noticed between items.
func ForEach[T any](ctx context.Context, items []T, fn func(context.Context, T) error) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
