// Package processing runs per-auction work on a bounded pool of goroutines.
// Rendering launches a browser per document, so the pool size is the only
// thing standing between a large auction list and resource exhaustion.
package processing

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Policy decides what one failing task means for the others.
type Policy int

const (
	// AllOrNothing cancels the remaining tasks on the first failure and
	// reports that failure.
	AllOrNothing Policy = iota
	// Isolated lets every task run to completion and reports all failures.
	Isolated
)

func (p Policy) String() string {
	switch p {
	case AllOrNothing:
		return "all-or-nothing"
	case Isolated:
		return "isolated"
	}
	return "unknown"
}

// Task is one unit of work.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of the task at Index.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Run executes tasks with at most workers running at once and returns one
// Result per task in input order. workers below 1 means 1.
func Run[T any](ctx context.Context, workers int, tasks []Task[T], policy Policy) ([]Result[T], error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result[T], len(tasks))
	for i := range results {
		results[i].Index = i
	}

	if policy == Isolated {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, task := range tasks {
			i, task := i, task
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					return nil
				}
				results[i].Value, results[i].Err = task(ctx)
				return nil
			})
		}
		_ = g.Wait()
		var errs []error
		for _, r := range results {
			if r.Err != nil {
				errs = append(errs, r.Err)
			}
		}
		return results, errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			v, err := task(gctx)
			results[i].Value, results[i].Err = v, err
			return err
		})
	}
	return results, g.Wait()
}
