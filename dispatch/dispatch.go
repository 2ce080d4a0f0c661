// Package dispatch runs independent units of work concurrently and collects
// every outcome, keeping submission order.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work, typically a single inference call.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the settled outcome of one task.
type Result[T any] struct {
	Value T
	Err   error
}

// Run starts every task immediately and waits until all of them settle. A
// failing task fills its own result slot and never cancels or delays its
// siblings; a deadline on ctx reaches still-pending tasks through the context
// they are handed. Result order matches task order regardless of completion
// order, so callers can zip results back to their inputs by index.
func Run[T any](ctx context.Context, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = settle(ctx, task)
			return nil
		})
	}
	// Closures never return errors, so Wait is purely the fan-in barrier.
	_ = g.Wait()

	return results
}

func settle[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	res.Value, res.Err = task(ctx)
	return res
}
