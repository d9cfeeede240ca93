// Package stealpool provides a fixed-size, work-stealing task pool for Go.
//
// Callers submit closures and later read each task's value or error from a
// Future. A fixed set of worker goroutines executes the tasks. Nothing on the
// submission or dispatch path takes a lock: every worker owns a bounded
// lock-free ring, a shared lock-free stack absorbs everything else, and idle
// workers steal from each other.
//
// # Quick Start
//
//	pool, err := stealpool.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	fut := stealpool.Submit(ctx, pool, func(ctx context.Context) (int, error) {
//	    return 5 * 10, nil
//	})
//
//	v, err := fut.Get() // 50, nil
//
// Go and Run cover closures that return only an error, or nothing at all.
//
// # Scheduling
//
// Each worker loops over the same steps:
//
//  1. pop from its own ring
//  2. pop from the overflow stack
//  3. steal from up to 2*N randomly chosen peers
//  4. back off and start again
//
// Submissions made from outside the pool always go to the overflow stack.
// Submissions made by a running task, using the context that task received,
// go to the ring of the worker running it; if that ring is full they go to
// the overflow stack. The overflow stack is last-in-first-out, and stealing
// reorders work further: the pool makes no ordering promise across tasks.
//
// # Idle Backoff
//
// A worker that finds nothing escalates through tiers (see Backoff):
// yield, sleep 10µs, sleep 100µs, then sleep 1ms with its sleeping flag set.
// A successful submission resets the counter of the first sleeping worker it
// finds, so that worker drops back to the fast tier when its current sleep
// ends. Wake latency under low load is therefore bounded by LongSleep.
//
// # Errors and Panics
//
// A task's error is returned by Future.Get. A panicking task is recovered on
// the worker; Get returns a *PanicError carrying the value and stack, and the
// worker carries on. Use WithPanicHandler or WithLogger to observe panics.
//
// # Quiescence and Shutdown
//
// Drain waits until nothing is queued or executing. Pending is a cheaper,
// approximate figure (overflow stack plus executing tasks) that does not see
// tasks in worker rings.
//
// Shutdown drains, stops the workers and sweeps anything left behind by
// submissions that raced it. Swept tasks fail with ErrPoolShutdown.
//
//	pool, _ := stealpool.New(stealpool.WithNumWorkers(2))
//	stealpool.Run(ctx, pool, func() { time.Sleep(100 * time.Millisecond) })
//	pool.Shutdown() // returns after the sleep
//
// Do not call Drain or Shutdown from inside a task: the calling task counts
// as outstanding work and the call would never return.
//
// # Thread Safety
//
// All exported functions and methods are safe for concurrent use.
package stealpool
