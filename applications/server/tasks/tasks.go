// Package tasks coordinates batches of continuation-style tasks and folds
// them into a single aggregate result.
package tasks

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task performs a unit of work and signals completion by invoking done
// exactly once, with nil on success or the failure otherwise. A task may
// invoke done synchronously or from another goroutine.
type Task func(done func(err error))

// Runner executes task batches. The zero value is usable.
type Runner struct {
	// OnDone, when set, is called once per completed task with the task's
	// submission index and result. For Sequential runs calls arrive in
	// submission order; for Concurrent runs, in finishing order.
	OnDone func(index int, err error)

	mu sync.Mutex
}

func (r *Runner) notify(index int, err error) {
	if r.OnDone == nil {
		return
	}
	r.mu.Lock()
	r.OnDone(index, err)
	r.mu.Unlock()
}

// Sequential executes tasks strictly one at a time in submission order.
// Each task is started from the runner's own loop, never from the previous
// task's continuation, so completion chains cannot grow the stack.
// The first task failure stops the batch and becomes the aggregate error;
// ctx cancellation while waiting on a task does the same. An empty batch
// completes immediately.
func (r *Runner) Sequential(ctx context.Context, batch []Task) error {
	for i, task := range batch {
		ch := make(chan error, 1)
		task(func(err error) { ch <- err })

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-ch:
			r.notify(i, err)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Concurrent starts every task immediately, each on its own goroutine, and
// waits for all of them. The aggregate completes only once every task has
// finished; the first failure cancels the group context handed to the
// remaining waits and becomes the aggregate error. An empty batch completes
// immediately.
func (r *Runner) Concurrent(ctx context.Context, batch []Task) error {
	group, gctx := errgroup.WithContext(ctx)

	for i, task := range batch {
		i, task := i, task
		group.Go(func() error {
			ch := make(chan error, 1)
			task(func(err error) { ch <- err })

			var err error
			select {
			case <-gctx.Done():
				err = gctx.Err()
			case err = <-ch:
			}

			r.notify(i, err)

			return err
		})
	}

	return group.Wait()
}
