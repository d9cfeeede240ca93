package stealpool

import "context"

// Submit schedules fn on p and returns a Future for its outcome.
//
// ctx selects the submission path only: when it is the context a task of p
// received, fn goes to that worker's own ring; any other context sends fn to
// the shared overflow stack. fn itself always receives the context of the
// worker that executes it, so nested submissions take the local path.
//
// Submit never blocks and never fails synchronously. A nil fn, or a pool
// whose workers have stopped, yields a Future already failed with ErrNilTask
// or ErrPoolShutdown.
//
// Example:
//
//	fut := stealpool.Submit(ctx, pool, func(ctx context.Context) (int, error) {
//	    return 6 * 7, nil
//	})
//	v, err := fut.Get()
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	fut := newFuture[T]()

	var zero T
	switch {
	case fn == nil:
		fut.resolve(zero, ErrNilTask)
		return fut
	case p.stop.Load():
		p.metrics.rejected.Add(1)
		fut.resolve(zero, ErrPoolShutdown)
		return fut
	}

	p.enqueue(ctx, newTask(fn, fut, p.handlePanic))
	return fut
}

// Go schedules fn for its error only.
func Go(ctx context.Context, p *Pool, fn func(context.Context) error) *Future[struct{}] {
	if fn == nil {
		return Submit[struct{}](ctx, p, nil)
	}
	return Submit(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Run schedules a plain function. Its Future reports only a panic or
// ErrPoolShutdown.
func Run(ctx context.Context, p *Pool, fn func()) *Future[struct{}] {
	if fn == nil {
		return Submit[struct{}](ctx, p, nil)
	}
	return Submit(ctx, p, func(context.Context) (struct{}, error) {
		fn()
		return struct{}{}, nil
	})
}
