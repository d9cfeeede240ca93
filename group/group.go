package group

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tahsin716/stealpool"
)

// Group runs a collection of related tasks on a pool with structured
// concurrency: one cancellation scope, one Wait, one error policy.
//
// A Group is not reusable once Wait has returned.
type Group struct {
	pool   *stealpool.Pool
	ctx    context.Context
	cancel context.CancelFunc
	config Config

	mu      sync.Mutex
	futures []*stealpool.Future[struct{}]

	failOnce  sync.Once
	firstFail *member // FailFast only; set inside failOnce

	// State tracking
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// member ties a task to its future, which is only known once the
// submission has returned.
type member struct {
	fut *stealpool.Future[struct{}] // guarded by Group.mu
}

// Stats provides information about task execution
type Stats struct {
	Running   int64
	Completed int64
	Failed    int64
}

// New creates a Group whose tasks run on pool. The group context derives
// from ctx; when ctx is the context of a running pool task, tasks of the
// group start on that task's worker.
func New(ctx context.Context, pool *stealpool.Pool, opts ...Option) *Group {
	config := BuildConfig(opts)

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		groupCtx context.Context
		cancel   context.CancelFunc
	)
	if config.timeout > 0 {
		groupCtx, cancel = context.WithTimeout(ctx, config.timeout)
	} else {
		groupCtx, cancel = context.WithCancel(ctx)
	}

	return &Group{
		pool:   pool,
		ctx:    groupCtx,
		cancel: cancel,
		config: config,
	}
}

// Go schedules fn on the pool.
//
// fn receives a context that is cancelled with the group and also
// identifies the worker running fn, so work it submits with that context
// stays on the worker's ring. A panic in fn is reported by Wait as a
// *stealpool.PanicError.
func (g *Group) Go(fn func(context.Context) error) {
	g.submitted.Add(1)
	m := &member{}

	fut := stealpool.Go(g.ctx, g.pool, func(wctx context.Context) error {
		returned := false
		defer func() {
			g.completed.Add(1)
			if !returned {
				// panicking; the pool records the value
				g.failed.Add(1)
				g.fail(m)
			}
		}()

		err := fn(taskContext{Context: g.ctx, worker: wctx})
		returned = true

		if err != nil {
			g.failed.Add(1)
			g.fail(m)
		}
		return err
	})

	g.mu.Lock()
	m.fut = fut
	g.futures = append(g.futures, fut)
	g.mu.Unlock()
}

// GoSafe runs a function whose outcome does not matter to Wait.
// Panics are still recovered by the pool.
func (g *Group) GoSafe(fn func(context.Context)) {
	g.Go(func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Wait blocks until every task submitted so far, including tasks added by
// running tasks while Wait is blocked, has finished. It then cancels the
// group context and returns the errors according to the error mode.
//
// Wait parks the calling goroutine. Calling it from inside a pool task
// holds that worker until the group finishes, which deadlocks a pool with a
// single worker.
func (g *Group) Wait() error {
	var errs []error
	for i := 0; ; i++ {
		g.mu.Lock()
		if i == len(g.futures) {
			g.mu.Unlock()
			break
		}
		fut := g.futures[i]
		g.mu.Unlock()

		if _, err := fut.Get(); err != nil {
			errs = append(errs, err)
		}
	}
	g.Stop()

	switch g.config.errorMode {
	case IgnoreErrors:
		return nil

	case FailFast:
		// The first task to fail, panic included, decides the result.
		g.mu.Lock()
		var first *stealpool.Future[struct{}]
		if g.firstFail != nil {
			first = g.firstFail.fut
		}
		g.mu.Unlock()
		if first != nil {
			_, err := first.Get()
			return err
		}
		if len(errs) > 0 {
			return errs[0]
		}
		return nil

	case CollectAll:
		if len(errs) > 0 {
			return &AggregateError{Errors: errs}
		}
		return nil

	default:
		return nil
	}
}

// Context returns the group context.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Stop cancels the group context, signaling all tasks to stop
func (g *Group) Stop() {
	g.cancel()
}

// Stats returns current statistics about the group
func (g *Group) Stats() Stats {
	completed := g.completed.Load()
	return Stats{
		Running:   g.submitted.Load() - completed,
		Completed: completed,
		Failed:    g.failed.Load(),
	}
}

// fail records the first failing task in FailFast mode and cancels the
// group.
func (g *Group) fail(m *member) {
	if g.config.errorMode != FailFast {
		return
	}
	g.failOnce.Do(func() {
		g.mu.Lock()
		g.firstFail = m
		g.mu.Unlock()
		g.cancel()
	})
}
