package stealpool

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// worker owns one ring and runs the scheduling loop on its own goroutine.
type worker struct {
	id   int
	pool *Pool

	// queue is pushed by this worker only; peers steal from it
	queue *ringQueue

	// ctx carries the worker token handed to every task run here
	ctx context.Context

	// idle counts consecutive empty polls. Written by the worker, reset to
	// zero by submitters through the wake hint.
	idle atomic.Uint64

	// sleeping is set for the duration of a long-tier sleep
	sleeping atomic.Bool

	// Metrics
	tasksExecuted atomic.Uint64
	tasksStolen   atomic.Uint64
	tasksPanicked atomic.Uint64

	// Stealing metadata (owner only)
	seed uint32 // XorShift PRNG seed
}

// newWorker creates a new worker
func newWorker(id int, pool *Pool, queueSize int) *worker {
	w := &worker{
		id:    id,
		pool:  pool,
		queue: newRingQueue(queueSize),
		seed:  uint32(time.Now().UnixNano()) + uint32(id+1)*2654435761,
	}
	if w.seed == 0 {
		w.seed = 1
	}
	w.ctx = withWorker(context.Background(), w)
	return w
}

// run is the main worker loop
func (w *worker) run() {
	if w.pool.config.PinWorkerThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if w.pool.config.OnWorkerStart != nil {
		w.pool.config.OnWorkerStart(w.id)
	}
	w.pool.logger.Debug().Int("worker", w.id).Msg("worker started")

	for !w.pool.stop.Load() {
		if t := w.findTask(); t != nil {
			w.execute(t)
			continue
		}
		w.backoff()
	}

	w.pool.logger.Debug().
		Int("worker", w.id).
		Uint64("executed", w.tasksExecuted.Load()).
		Uint64("stolen", w.tasksStolen.Load()).
		Msg("worker stopped")

	if w.pool.config.OnWorkerStop != nil {
		w.pool.config.OnWorkerStop(w.id)
	}
}

// findTask looks for work in order: own ring, overflow stack, peers.
func (w *worker) findTask() *task {
	if t := w.queue.pop(); t != nil {
		return t
	}

	if t := w.pool.overflow.pop(); t != nil {
		return t
	}

	return w.stealFromPeers()
}

// stealFromPeers tries up to 2*N randomly chosen victims. Picking ourselves
// still uses up an attempt.
func (w *worker) stealFromPeers() *task {
	workers := w.pool.workers
	n := len(workers)
	if n <= 1 {
		return nil
	}

	for attempts := 0; attempts < 2*n; attempts++ {
		victimID := w.randomVictim(n)
		if victimID == w.id {
			continue
		}

		if t := workers[victimID].queue.steal(); t != nil {
			w.tasksStolen.Add(1)
			if m := w.pool.config.Metrics; m != nil {
				m.RecordSteal(w.id, victimID)
			}
			return t
		}
	}

	return nil
}

// randomVictim selects a random worker using XorShift PRNG
func (w *worker) randomVictim(n int) int {
	w.seed ^= w.seed << 13
	w.seed ^= w.seed >> 17
	w.seed ^= w.seed << 5
	return int(w.seed % uint32(n))
}

// backoff escalates from yielding to sleeping as empty polls accumulate.
func (w *worker) backoff() {
	b := &w.pool.config.Backoff
	k := w.idle.Add(1) - 1

	switch {
	case k < b.YieldPolls:
		runtime.Gosched()
	case k < b.ShortPolls:
		time.Sleep(b.ShortSleep)
	case k < b.MediumPolls:
		time.Sleep(b.MediumSleep)
	default:
		w.sleeping.Store(true)
		time.Sleep(b.LongSleep)
		w.sleeping.Store(false)
	}
}

// execute runs t and settles the pool counters. The panic, if any, has
// already been captured into the task's Future by the task wrapper.
func (w *worker) execute(t *task) {
	p := w.pool

	p.executing.Add(1)
	start := time.Now()

	t.run(w.ctx)

	elapsed := time.Since(start)
	p.executing.Add(-1)

	w.tasksExecuted.Add(1)
	if m := p.config.Metrics; m != nil {
		m.RecordTaskDuration(w.id, elapsed)
	}

	p.outstanding.Add(-1)
	w.idle.Store(0)
}

// pushLocal offers t to this worker's ring on behalf of a task running on it.
//
// The worker token can escape into goroutines the task starts, so the push
// first claims the ring's single-writer flag; if another goroutine holds it
// the caller falls back to the overflow stack.
func (w *worker) pushLocal(t *task) bool {
	q := w.queue
	if !q.pushing.CompareAndSwap(false, true) {
		return false
	}
	ok := q.push(t)
	q.pushing.Store(false)
	return ok
}
