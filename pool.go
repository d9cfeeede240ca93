package stealpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// PoolState represents pool lifecycle states
type PoolState uint32

const (
	// StateRunning accepts and executes tasks.
	StateRunning PoolState = iota
	// StateDraining is set while Shutdown waits for outstanding tasks.
	StateDraining
	// StateStopped means the workers have exited.
	StateStopped
)

func (s PoolState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Pool is a fixed set of workers sharing work through per-worker rings,
// a global overflow stack and work stealing.
type Pool struct {
	config  Config
	logger  zerolog.Logger
	workers []*worker

	overflow overflowStack

	// Lifecycle management
	state    atomic.Uint32 // PoolState
	stop     atomic.Bool
	wg       sync.WaitGroup
	shutdown sync.Once

	// executing counts tasks currently inside their closure
	executing atomic.Int64

	// outstanding counts tasks submitted and not yet finished
	outstanding atomic.Int64

	// Metrics
	metrics poolMetrics
}

// poolMetrics tracks pool-wide statistics
type poolMetrics struct {
	submitted       atomic.Uint64
	localSubmits    atomic.Uint64
	overflowSubmits atomic.Uint64
	rejected        atomic.Uint64
	swept           atomic.Uint64
}

// New creates a new pool with the given options and starts its workers.
// It returns an error if the configuration is invalid.
//
// Example:
//
//	pool, err := stealpool.New(
//	    stealpool.WithNumWorkers(4),
//	    stealpool.WithQueueSize(1024),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
func New(opts ...Option) (*Pool, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	p := &Pool{
		config:  cfg,
		logger:  cfg.Logger.With().Str("component", "stealpool").Logger(),
		workers: make([]*worker, cfg.NumWorkers),
	}
	p.state.Store(uint32(StateRunning))

	// All workers exist before any starts: thieves index p.workers freely.
	for i := range p.workers {
		p.workers[i] = newWorker(i, p, cfg.QueueSize)
	}

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(wk *worker) {
			defer p.wg.Done()
			wk.run()
		}(w)
	}

	p.logger.Debug().
		Int("workers", cfg.NumWorkers).
		Int("queue_size", cfg.QueueSize).
		Msg("pool started")

	return p, nil
}

// enqueue routes t: the calling worker's ring when ctx identifies one of
// this pool's workers and the ring has room, the overflow stack otherwise.
func (p *Pool) enqueue(ctx context.Context, t *task) {
	p.outstanding.Add(1)
	p.metrics.submitted.Add(1)

	if w := workerFor(ctx, p); w != nil && w.pushLocal(t) {
		p.metrics.localSubmits.Add(1)
		if m := p.config.Metrics; m != nil {
			m.RecordSubmit(RouteLocal)
		}
		p.wakeHint()
		return
	}

	p.overflow.push(t)
	p.metrics.overflowSubmits.Add(1)
	if m := p.config.Metrics; m != nil {
		m.RecordSubmit(RouteOverflow)
	}
	p.wakeHint()
}

// wakeHint resets the backoff of the first sleeping worker found. It does not
// interrupt the sleep; that worker resumes in the fast tier once it wakes.
func (p *Pool) wakeHint() {
	for _, w := range p.workers {
		if w.sleeping.Load() {
			w.idle.Store(0)
			return
		}
	}
}

// Drain blocks until the pool is quiescent: every submitted task has
// finished, nothing is executing, the overflow stack is empty and every
// worker's ring is empty.
//
// Drain polls, yielding between checks. Tasks submitted concurrently with a
// Drain call race with it; callers that need an exhaustive Drain must not
// submit while it runs.
//
// Drain must not be called from inside a task: the calling task is itself
// outstanding, so Drain never returns.
func (p *Pool) Drain() {
	_ = p.DrainContext(context.Background())
}

// DrainContext is like Drain but gives up when ctx is done, returning
// ctx.Err().
func (p *Pool) DrainContext(ctx context.Context) error {
	done := ctx.Done()
	wait := func(quiet func() bool) error {
		for !quiet() {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
			runtime.Gosched()
		}
		return nil
	}

	if err := wait(func() bool {
		return p.outstanding.Load() <= 0
	}); err != nil {
		return err
	}

	if err := wait(func() bool {
		return p.executing.Load() == 0 && p.overflow.len() == 0
	}); err != nil {
		return err
	}

	if err := wait(func() bool {
		for _, w := range p.workers {
			if !w.queue.empty() {
				return false
			}
		}
		return true
	}); err != nil {
		return err
	}

	p.logger.Debug().Msg("pool drained")
	return nil
}

// Shutdown drains the pool, stops and joins the workers, then sweeps any
// task still queued (only possible when a submission raced the shutdown).
// Swept tasks never run; their Futures fail with ErrPoolShutdown.
//
// Multiple calls to Shutdown are safe; only the first does anything.
//
// Example:
//
//	pool, _ := stealpool.New()
//	defer pool.Shutdown()
func (p *Pool) Shutdown() {
	p.shutdown.Do(func() {
		p.state.Store(uint32(StateDraining))
		p.Drain()

		p.stop.Store(true)
		p.wg.Wait()
		p.state.Store(uint32(StateStopped))

		swept := p.sweep()

		if swept > 0 {
			p.logger.Warn().Int("swept", swept).Msg("pool shutdown dropped queued tasks")
		} else {
			p.logger.Info().
				Uint64("submitted", p.metrics.submitted.Load()).
				Msg("pool shutdown")
		}
	})
}

// sweep fails every task left in the overflow stack or a ring with
// ErrPoolShutdown and returns how many there were. Workers must be stopped.
func (p *Pool) sweep() int {
	swept := 0
	abort := func(t *task) {
		t.abort(ErrPoolShutdown)
		p.outstanding.Add(-1)
		p.metrics.swept.Add(1)
		swept++
	}

	p.overflow.detach(abort)
	for _, w := range p.workers {
		w.queue.drain(abort)
	}
	return swept
}

// Pending returns an approximate count of outstanding work: tasks in the
// overflow stack plus tasks currently executing.
//
// Tasks sitting in worker rings are not counted, so Pending can report 0
// while work remains queued. Use Drain to wait for real quiescence.
func (p *Pool) Pending() int {
	n := int(p.executing.Load()) + p.overflow.len()
	if n < 0 {
		return 0
	}
	return n
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// State returns the current lifecycle state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsShutdown returns true once Shutdown has started.
func (p *Pool) IsShutdown() bool {
	return p.State() != StateRunning
}

// handlePanic is invoked on the worker goroutine after a task panicked.
func (p *Pool) handlePanic(ctx context.Context, pe *PanicError) {
	workerID := -1
	if w := workerFor(ctx, p); w != nil {
		workerID = w.id
		w.tasksPanicked.Add(1)
	}

	p.logger.Error().
		Int("worker", workerID).
		Interface("panic", pe.Value).
		Str("stack", pe.Stack).
		Msg("task panicked")

	if m := p.config.Metrics; m != nil {
		m.RecordTaskPanic(workerID)
	}

	if h := p.config.PanicHandler; h != nil {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().Interface("panic", r).Msg("panic handler panicked")
			}
		}()
		h(pe)
	}
}
