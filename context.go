package stealpool

import "context"

type workerTokenKey struct{}

// workerToken identifies the worker running a task. It travels on the
// context handed to every task, so a task that submits more work with that
// context lands on its own worker's ring instead of the overflow stack.
type workerToken struct {
	pool *Pool
	w    *worker
}

func withWorker(ctx context.Context, w *worker) context.Context {
	return context.WithValue(ctx, workerTokenKey{}, &workerToken{pool: w.pool, w: w})
}

// workerFor returns the worker of p named by ctx, or nil if ctx was not
// produced by one of p's workers.
func workerFor(ctx context.Context, p *Pool) *worker {
	if ctx == nil {
		return nil
	}
	tok, ok := ctx.Value(workerTokenKey{}).(*workerToken)
	if !ok || tok.pool != p {
		return nil
	}
	return tok.w
}

// WorkerID returns the id of the worker executing the task that received
// ctx. ok is false outside of a task.
func WorkerID(ctx context.Context) (id int, ok bool) {
	if ctx == nil {
		return 0, false
	}
	tok, ok := ctx.Value(workerTokenKey{}).(*workerToken)
	if !ok {
		return 0, false
	}
	return tok.w.id, true
}
