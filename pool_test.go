package stealpool

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestPool(t testing.TB, opts ...Option) *Pool {
	t.Helper()
	pool, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return pool
}

// ============================================================================
// Pool Creation Tests
// ============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	pool := newTestPool(t)
	assert.Equal(t, runtime.GOMAXPROCS(0), pool.NumWorkers())
	assert.Equal(t, DefaultQueueSize-1, pool.Stats().Workers[0].Capacity)
}

func TestNew_WorkerCounts(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 16} {
		pool := newTestPool(t, WithNumWorkers(n))
		assert.Equal(t, n, pool.NumWorkers())
		assert.Len(t, pool.Stats().Workers, n)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "negative workers", opts: []Option{WithNumWorkers(-1)}},
		{name: "negative queue size", opts: []Option{WithQueueSize(-2)}},
		{name: "non-power-of-2 queue", opts: []Option{WithQueueSize(100)}},
		{name: "queue of one", opts: []Option{WithQueueSize(1)}},
		{name: "decreasing tiers", opts: []Option{WithBackoff(Backoff{YieldPolls: 50, ShortPolls: 20, MediumPolls: 100})}},
		{name: "negative sleep", opts: []Option{WithBackoff(Backoff{LongSleep: -time.Millisecond})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			require.Error(t, err)

			var pe *PoolError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

// ============================================================================
// Execution Tests
// ============================================================================

func TestPool_ExactlyOnce(t *testing.T) {
	for _, n := range []int{1, 1000, 100000} {
		pool := newTestPool(t, WithNumWorkers(4))

		var counter atomic.Int64
		for i := 0; i < n; i++ {
			Run(context.Background(), pool, func() { counter.Add(1) })
		}
		pool.Drain()

		assert.EqualValues(t, n, counter.Load(), "n=%d", n)
		assert.EqualValues(t, n, pool.Stats().Completed, "n=%d", n)
	}
}

func TestPool_ResultCorrectness(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4))
	ctx := context.Background()

	futures := make([]*Future[int], 1000)
	for i := range futures {
		i := i
		futures[i] = Submit(ctx, pool, func(context.Context) (int, error) { return i, nil })
	}

	for i, f := range futures {
		v, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestPool_MixedResultTypes(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4))
	ctx := context.Background()

	i := Submit(ctx, pool, func(context.Context) (int, error) { return 42, nil })
	s := Submit(ctx, pool, func(context.Context) (string, error) { return "Hello", nil })
	d := Submit(ctx, pool, func(context.Context) (float64, error) { return 3.14, nil })
	v := Run(ctx, pool, func() {})

	iv, err := i.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, iv)

	sv, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "Hello", sv)

	dv, err := d.Get()
	require.NoError(t, err)
	assert.InDelta(t, 3.14, dv, 1e-12)

	_, err = v.Get()
	assert.NoError(t, err)
}

func TestPool_FailureIsolation(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(2))
	ctx := context.Background()
	boom := errors.New("test error")

	failing := Submit(ctx, pool, func(context.Context) (int, error) { return 0, boom })
	panicking := Submit(ctx, pool, func(context.Context) (int, error) { panic("test panic") })
	healthy := Submit(ctx, pool, func(context.Context) (int, error) { return 84, nil })

	_, err := failing.Get()
	assert.ErrorIs(t, err, boom)

	_, err = panicking.Get()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "test panic", pe.Value)

	v, err := healthy.Get()
	require.NoError(t, err)
	assert.Equal(t, 84, v)

	// Workers survive the panic
	after, err := Submit(ctx, pool, func(context.Context) (int, error) { return 1, nil }).Get()
	require.NoError(t, err)
	assert.Equal(t, 1, after)
	assert.EqualValues(t, 1, pool.Stats().Panicked)
}

func TestPool_PanicHandlerAndLogger(t *testing.T) {
	var (
		buf     bytes.Buffer
		bufMu   sync.Mutex
		handled atomic.Value
	)
	logger := zerolog.New(zerolog.SyncWriter(writerFunc(func(p []byte) (int, error) {
		bufMu.Lock()
		defer bufMu.Unlock()
		return buf.Write(p)
	})))

	pool := newTestPool(t,
		WithNumWorkers(1),
		WithLogger(logger),
		WithPanicHandler(func(pe *PanicError) {
			handled.Store(pe.Value)
			panic("handler misbehaves")
		}),
	)

	_, err := Run(context.Background(), pool, func() { panic("custom panic") }).Get()
	require.Error(t, err)
	pool.Drain()

	assert.Equal(t, "custom panic", handled.Load())

	bufMu.Lock()
	out := buf.String()
	bufMu.Unlock()
	assert.Contains(t, out, "task panicked")
	assert.Contains(t, out, "panic handler panicked")

	// still alive
	_, err = Run(context.Background(), pool, func() {}).Get()
	assert.NoError(t, err)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// ============================================================================
// Scheduling Tests
// ============================================================================

func TestPool_LoadBalance_External(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4))

	for i := 0; i < 10000; i++ {
		Run(context.Background(), pool, func() { time.Sleep(100 * time.Microsecond) })
	}
	pool.Drain()

	assertBalanced(t, pool.Stats(), 10000)
}

func TestPool_LoadBalance_Stealing(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4), WithQueueSize(16384))

	// One task fans out onto its own ring; the other workers only get work
	// by stealing it.
	_, err := Go(context.Background(), pool, func(ctx context.Context) error {
		for i := 0; i < 10000; i++ {
			Run(ctx, pool, func() { time.Sleep(100 * time.Microsecond) })
		}
		return nil
	}).Get()
	require.NoError(t, err)
	pool.Drain()

	stats := pool.Stats()
	assert.EqualValues(t, 10000, stats.LocalSubmits)
	assert.Positive(t, stats.Stolen)
	assertBalanced(t, stats, 10001)
}

func assertBalanced(t *testing.T, stats Stats, total uint64) {
	t.Helper()

	var minExec, maxExec, sum uint64 = ^uint64(0), 0, 0
	for _, ws := range stats.Workers {
		minExec = min(minExec, ws.Executed)
		maxExec = max(maxExec, ws.Executed)
		sum += ws.Executed
	}

	require.Equal(t, total, sum)
	require.Positive(t, minExec, "a worker executed nothing: %+v", stats.Workers)
	ratio := float64(maxExec) / float64(minExec)
	assert.Less(t, ratio, 3.0, "busiest/idlest = %d/%d", maxExec, minExec)
}

func TestPool_ConcurrentSubmission(t *testing.T) {
	const (
		producers   = 16
		perProducer = 1000
	)

	pool := newTestPool(t, WithNumWorkers(8))

	hits := make([]atomic.Int32, producers*perProducer)
	var g errgroup.Group
	for p := 0; p < producers; p++ {
		base := p * perProducer
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				id := base + i
				Run(context.Background(), pool, func() {
					hits[id].Add(1)
					time.Sleep(10 * time.Microsecond)
				})
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	pool.Drain()

	for id := range hits {
		if n := hits[id].Load(); n != 1 {
			t.Fatalf("task %d ran %d times", id, n)
		}
	}
	assert.EqualValues(t, producers*perProducer, pool.Stats().Completed)
}

func TestPool_RecursiveSubmission(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4))

	var count atomic.Int32
	var spawn func(ctx context.Context, depth int)
	spawn = func(ctx context.Context, depth int) {
		if depth == 0 {
			return
		}
		count.Add(1)
		for i := 0; i < 2; i++ {
			Go(ctx, pool, func(ctx context.Context) error {
				spawn(ctx, depth-1)
				return nil
			})
		}
	}

	Go(context.Background(), pool, func(ctx context.Context) error {
		spawn(ctx, 5)
		return nil
	})
	pool.Drain()

	assert.EqualValues(t, 31, count.Load())
	stats := pool.Stats()
	assert.EqualValues(t, 62, stats.LocalSubmits)
	assert.EqualValues(t, 1, stats.OverflowSubmits)
}

func TestPool_LocalQueueFullFallsBackToOverflow(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(1), WithQueueSize(4))

	var ran atomic.Int32
	_, err := Go(context.Background(), pool, func(ctx context.Context) error {
		for i := 0; i < 10; i++ {
			Run(ctx, pool, func() { ran.Add(1) })
		}
		return nil
	}).Get()
	require.NoError(t, err)
	pool.Drain()

	stats := pool.Stats()
	assert.EqualValues(t, 10, ran.Load())
	assert.EqualValues(t, 3, stats.LocalSubmits)
	assert.EqualValues(t, 8, stats.OverflowSubmits)
}

func TestPool_LongRunningConcurrencyBound(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4))

	var current, peak atomic.Int32
	futures := make([]*Future[struct{}], 20)
	for i := range futures {
		futures[i] = Run(context.Background(), pool, func() {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			current.Add(-1)
		})
	}
	for _, f := range futures {
		_, err := f.Get()
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.GreaterOrEqual(t, peak.Load(), int32(2))
}

// ============================================================================
// Context Tests
// ============================================================================

func TestWorkerID(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(3))

	_, ok := WorkerID(context.Background())
	assert.False(t, ok)

	id, err := Submit(context.Background(), pool, func(ctx context.Context) (int, error) {
		id, ok := WorkerID(ctx)
		if !ok {
			return -1, errors.New("no worker id")
		}
		return id, nil
	}).Get()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, 0)
	assert.Less(t, id, 3)
}

func TestSubmit_ForeignWorkerContextUsesOverflow(t *testing.T) {
	a := newTestPool(t, WithNumWorkers(1))
	b := newTestPool(t, WithNumWorkers(1))

	_, err := Go(context.Background(), a, func(ctx context.Context) error {
		// ctx belongs to pool a: b must not treat it as one of its workers
		_, err := Run(ctx, b, func() {}).Get()
		return err
	}).Get()
	require.NoError(t, err)

	assert.Zero(t, b.Stats().LocalSubmits)
	assert.EqualValues(t, 1, b.Stats().OverflowSubmits)
}

func TestSubmit_EscapedTokenIsSafe(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(2))

	var ran atomic.Int32
	_, err := Go(context.Background(), pool, func(ctx context.Context) error {
		// Goroutines started by the task share its worker token
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				for j := 0; j < 500; j++ {
					Run(ctx, pool, func() { ran.Add(1) })
				}
				return nil
			})
		}
		return g.Wait()
	}).Get()
	require.NoError(t, err)
	pool.Drain()

	assert.EqualValues(t, 4000, ran.Load())
	stats := pool.Stats()
	assert.EqualValues(t, 4001, stats.LocalSubmits+stats.OverflowSubmits)
}

func TestSubmit_NilTask(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(1))

	_, err := Submit[int](context.Background(), pool, nil).Get()
	assert.ErrorIs(t, err, ErrNilTask)
	_, err = Go(context.Background(), pool, nil).Get()
	assert.ErrorIs(t, err, ErrNilTask)
	_, err = Run(context.Background(), pool, nil).Get()
	assert.ErrorIs(t, err, ErrNilTask)
	assert.Zero(t, pool.Stats().Submitted)
}

// ============================================================================
// Quiescence and Shutdown Tests
// ============================================================================

func TestPool_Quiescence(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(4))

	for i := 0; i < 100; i++ {
		Run(context.Background(), pool, func() { time.Sleep(time.Millisecond) })
	}
	pool.Drain()

	assert.Zero(t, pool.Pending())
	for _, w := range pool.workers {
		assert.True(t, w.queue.empty(), "worker %d ring not empty", w.id)
	}

	start := time.Now()
	pool.Drain()
	assert.Less(t, time.Since(start), 50*time.Millisecond, "second drain should return immediately")
}

func TestPool_DrainContext(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(1))

	release := make(chan struct{})
	Run(context.Background(), pool, func() { <-release })
	require.Eventually(t, func() bool { return pool.Pending() == 1 && pool.overflow.len() == 0 },
		time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.DrainContext(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, pool.Pending())

	close(release)
	require.NoError(t, pool.DrainContext(context.Background()))
	assert.Zero(t, pool.Pending())
}

func TestPool_ShutdownWaitsForPendingWork(t *testing.T) {
	var completed atomic.Bool

	pool, err := New(WithNumWorkers(2))
	require.NoError(t, err)
	Run(context.Background(), pool, func() {
		time.Sleep(100 * time.Millisecond)
		completed.Store(true)
	})
	pool.Shutdown()

	assert.True(t, completed.Load())
	assert.True(t, pool.IsShutdown())
}

func TestPool_ShutdownIdempotent(t *testing.T) {
	pool, err := New(WithNumWorkers(2))
	require.NoError(t, err)

	pool.Shutdown()
	pool.Shutdown()
	assert.True(t, pool.IsShutdown())
}

func TestPool_StateTransitions(t *testing.T) {
	pool, err := New(WithNumWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, StateRunning, pool.State())
	assert.False(t, pool.IsShutdown())

	release := make(chan struct{})
	Run(context.Background(), pool, func() { <-release })

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	require.Eventually(t, func() bool {
		return pool.State() == StateDraining
	}, time.Second, time.Millisecond)
	assert.True(t, pool.IsShutdown())

	close(release)
	<-done
	assert.Equal(t, StateStopped, pool.State())
}

func TestPoolState_String(t *testing.T) {
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "DRAINING", StateDraining.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "UNKNOWN", PoolState(42).String())
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool, err := New(WithNumWorkers(2))
	require.NoError(t, err)
	pool.Shutdown()

	_, err = Run(context.Background(), pool, func() {}).Get()
	assert.ErrorIs(t, err, ErrPoolShutdown)
	assert.EqualValues(t, 1, pool.Stats().Rejected)
}

func TestPool_SweepFailsLeftoverTasks(t *testing.T) {
	pool, err := New(WithNumWorkers(2))
	require.NoError(t, err)
	pool.Shutdown()

	// Simulate submissions that raced teardown
	overflowFut := newFuture[int]()
	pool.overflow.push(newTask(func(context.Context) (int, error) { return 1, nil }, overflowFut, nil))
	localFut := newFuture[int]()
	require.True(t, pool.workers[1].queue.push(newTask(func(context.Context) (int, error) { return 2, nil }, localFut, nil)))
	pool.outstanding.Add(2)

	assert.Equal(t, 2, pool.sweep())

	_, err = overflowFut.Get()
	assert.ErrorIs(t, err, ErrPoolShutdown)
	_, err = localFut.Get()
	assert.ErrorIs(t, err, ErrPoolShutdown)
	assert.Zero(t, pool.outstanding.Load())
	assert.EqualValues(t, 2, pool.Stats().Swept)
}

func TestPool_WorkerHooks(t *testing.T) {
	var started, stopped atomic.Int32

	pool, err := New(
		WithNumWorkers(3),
		WithOnWorkerStart(func(int) { started.Add(1) }),
		WithOnWorkerStop(func(int) { stopped.Add(1) }),
	)
	require.NoError(t, err)

	_, err = Run(context.Background(), pool, func() {}).Get()
	require.NoError(t, err)
	pool.Shutdown()

	assert.EqualValues(t, 3, started.Load())
	assert.EqualValues(t, 3, stopped.Load())
}

// ============================================================================
// Backoff Tests
// ============================================================================

func TestWorker_SleepsWhenIdleAndWakeHintResets(t *testing.T) {
	backoff := Backoff{
		YieldPolls:  1,
		ShortPolls:  2,
		MediumPolls: 3,
		LongSleep:   300 * time.Millisecond,
	}
	pool := newTestPool(t, WithNumWorkers(1), WithBackoff(backoff))
	w := pool.workers[0]

	require.Eventually(t, func() bool {
		return w.sleeping.Load() && w.idle.Load() >= backoff.MediumPolls
	}, time.Second, time.Millisecond, "worker never reached the long sleep tier")

	pool.wakeHint()

	// The hint does not interrupt the sleep, only resets the counter; at
	// most one post-sleep poll may have counted since.
	assert.LessOrEqual(t, w.idle.Load(), uint64(1))

	_, err := Run(context.Background(), pool, func() {}).Get()
	require.NoError(t, err)
}

func TestPool_WakeHintResetsFirstSleeperOnly(t *testing.T) {
	// Workers are built but never started, so their state is ours to set.
	p := &Pool{}
	for i := 0; i < 3; i++ {
		p.workers = append(p.workers, newWorker(i, p, 16))
	}
	busy, first, second := p.workers[0], p.workers[1], p.workers[2]

	busy.idle.Store(50)
	first.idle.Store(120)
	first.sleeping.Store(true)
	second.idle.Store(130)
	second.sleeping.Store(true)

	p.wakeHint()

	assert.EqualValues(t, 50, busy.idle.Load(), "awake worker left alone")
	assert.Zero(t, first.idle.Load())
	assert.EqualValues(t, 130, second.idle.Load(), "only one sleeper is hinted")

	first.sleeping.Store(false)
	p.wakeHint()
	assert.Zero(t, second.idle.Load())
	assert.EqualValues(t, 50, busy.idle.Load())
}

func TestWorker_RandomVictimInRange(t *testing.T) {
	pool := newTestPool(t, WithNumWorkers(1))
	w := newWorker(0, pool, 16)

	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := w.randomVictim(5)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 5)
		seen[v] = true
	}
	assert.Len(t, seen, 5)
}

// ============================================================================
// Metrics Tests
// ============================================================================

type recordingMetrics struct {
	local, overflow atomic.Int64
	durations       atomic.Int64
	panics          atomic.Int64
	steals          atomic.Int64
}

func (m *recordingMetrics) RecordSubmit(route SubmitRoute) {
	if route == RouteLocal {
		m.local.Add(1)
	} else {
		m.overflow.Add(1)
	}
}

func (m *recordingMetrics) RecordTaskDuration(int, time.Duration) { m.durations.Add(1) }
func (m *recordingMetrics) RecordTaskPanic(int)                   { m.panics.Add(1) }
func (m *recordingMetrics) RecordSteal(int, int)                  { m.steals.Add(1) }

func TestPool_MetricsHook(t *testing.T) {
	m := &recordingMetrics{}
	pool := newTestPool(t, WithNumWorkers(2), WithMetrics(m))

	Go(context.Background(), pool, func(ctx context.Context) error {
		Run(ctx, pool, func() {})
		Run(ctx, pool, func() { panic("metrics") })
		return nil
	})
	pool.Drain()

	assert.EqualValues(t, 2, m.local.Load())
	assert.EqualValues(t, 1, m.overflow.Load())
	assert.EqualValues(t, 3, m.durations.Load())
	assert.EqualValues(t, 1, m.panics.Load())
	assert.Equal(t, "local", RouteLocal.String())
	assert.Equal(t, "overflow", RouteOverflow.String())
}
