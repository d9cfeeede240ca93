package stealpool

import (
	"context"
	"runtime/debug"
	"sync/atomic"
)

// task is the unit the scheduler moves between queues.
//
// A task is owned by exactly one party at a time: the submitter until it is
// pushed, the queue holding it, and finally the worker that dequeued it.
// The worker runs it once and drops the last reference.
type task struct {
	// run executes the user closure and publishes its outcome.
	// It never panics; panics are captured by the wrapper built in Submit.
	run func(ctx context.Context)

	// abort publishes a failure without running the closure.
	// Used when the pool tears down with the task still queued.
	abort func(err error)

	// next links tasks while they sit in the overflow stack.
	// Written by the pusher before the CAS that publishes the task.
	next *task
}

// Future is the caller-side handle of a submitted task.
//
// The outcome is published exactly once by the executing worker. Any number
// of goroutines may wait on it; all of them observe the same value and error,
// and every write the task made happens-before Get returns.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
	state atomic.Uint32
}

const (
	futurePending uint32 = iota
	futureResolving
	futureResolved
)

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve publishes the outcome. Only the first call has any effect.
func (f *Future[T]) resolve(value T, err error) bool {
	if !f.state.CompareAndSwap(futurePending, futureResolving) {
		return false
	}
	f.value = value
	f.err = err
	f.state.Store(futureResolved)
	close(f.done)
	return true
}

// Get blocks until the task has finished and returns its value or error.
//
// If the task panicked the error is a *PanicError. If the pool was torn down
// before the task ran the error is ErrPoolShutdown.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// GetContext is like Get but stops waiting when ctx is done.
// The task itself is not cancelled.
func (f *Future[T]) GetContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the outcome is available, i.e. Get would not block.
func (f *Future[T]) Ready() bool {
	return f.state.Load() == futureResolved
}

// Done returns a channel that is closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// newTask binds fn to fut. The returned task captures the closure's value,
// error or panic into fut; nothing escapes into the worker loop.
func newTask[T any](fn func(context.Context) (T, error), fut *Future[T], onPanic func(context.Context, *PanicError)) *task {
	return &task{
		run: func(ctx context.Context) {
			var (
				value T
				err   error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						pe := &PanicError{Value: r, Stack: string(debug.Stack())}
						err = pe
						if onPanic != nil {
							onPanic(ctx, pe)
						}
					}
				}()
				value, err = fn(ctx)
			}()
			fut.resolve(value, err)
		},
		abort: func(err error) {
			var zero T
			fut.resolve(zero, err)
		},
	}
}
