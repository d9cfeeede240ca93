package bench

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/internal/workload"
)

// Scenario is a pool workload timed on a fresh pool every iteration.
type Scenario struct {
	Name       string
	Iterations int
	Tasks      int

	// WorkerFactor scales the worker count; 2 doubles it for sleep-heavy
	// scenarios. Zero means 1.
	WorkerFactor int

	Body func(ctx context.Context, pool *stealpool.Pool, tasks int) error
}

// Scenarios returns the standard set with task counts multiplied by scale
// (1 gives the full-size runs; tests use a small fraction).
func Scenarios(scale float64) []Scenario {
	n := func(base int) int {
		return max(1, int(math.Round(float64(base)*scale)))
	}
	return []Scenario{
		{Name: "simple", Iterations: 10, Tasks: n(100_000), Body: simpleTasks},
		{Name: "computational", Iterations: 10, Tasks: n(10_000), Body: computationalTasks},
		{Name: "io-simulation", Iterations: 5, Tasks: n(1_000), WorkerFactor: 2, Body: ioTasks},
		{Name: "mixed", Iterations: 10, Tasks: n(50_000), Body: mixedTasks},
		{Name: "multi-producer", Iterations: 10, Tasks: n(100_000), Body: multiProducer},
		{Name: "heavy-cpu", Iterations: 5, Tasks: n(500), Body: heavyCPU},
		{Name: "heavy-mixed", Iterations: 3, Tasks: n(1_000), Body: heavyMixed},
		{Name: "heavy-recursive", Iterations: 5, Tasks: n(10_000_000), Body: heavyRecursive},
	}
}

// PoolFactory builds a pool with the given worker count.
type PoolFactory func(workers int) (*stealpool.Pool, error)

// NewPoolFactory returns a factory that applies opts, then the worker count.
func NewPoolFactory(opts ...stealpool.Option) PoolFactory {
	return func(workers int) (*stealpool.Pool, error) {
		return stealpool.New(append(slices.Clip(opts), stealpool.WithNumWorkers(workers))...)
	}
}

// RunScenario times s on a fresh pool from newPool per iteration. workers is
// the base worker count; 0 uses runtime.GOMAXPROCS(0). A nil newPool builds
// default pools.
func RunScenario(ctx context.Context, s Scenario, workers int, logger zerolog.Logger, newPool PoolFactory) (Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if newPool == nil {
		newPool = NewPoolFactory()
	}
	factor := max(1, s.WorkerFactor)

	var pool *stealpool.Pool
	return Run(Case{
		Name:       s.Name,
		Iterations: s.Iterations,
		Ops:        s.Tasks,
		Setup: func() error {
			var err error
			pool, err = newPool(workers * factor)
			return err
		},
		Body: func() error {
			return s.Body(ctx, pool, s.Tasks)
		},
		Teardown: func() {
			pool.Shutdown()
			pool = nil
		},
	}, logger)
}

// ScalabilityPoint is the simple-task throughput at one worker count.
type ScalabilityPoint struct {
	Workers    int
	Elapsed    time.Duration
	Throughput float64
	Speedup    float64 // relative to the first point
}

// Scalability runs the simple scenario once per worker count.
func Scalability(ctx context.Context, workerCounts []int, tasks int, newPool PoolFactory) ([]ScalabilityPoint, error) {
	if newPool == nil {
		newPool = NewPoolFactory()
	}
	points := make([]ScalabilityPoint, 0, len(workerCounts))
	for _, w := range workerCounts {
		pool, err := newPool(w)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		err = simpleTasks(ctx, pool, tasks)
		elapsed := time.Since(start)
		pool.Shutdown()
		if err != nil {
			return nil, fmt.Errorf("%d workers: %w", w, err)
		}

		p := ScalabilityPoint{
			Workers:    w,
			Elapsed:    elapsed,
			Throughput: float64(tasks) / elapsed.Seconds(),
		}
		if len(points) > 0 && points[0].Throughput > 0 {
			p.Speedup = p.Throughput / points[0].Throughput
		} else {
			p.Speedup = 1
		}
		points = append(points, p)
	}
	return points, nil
}

func simpleTasks(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	var counter atomic.Int64
	futures := make([]*stealpool.Future[struct{}], tasks)
	for i := range futures {
		futures[i] = stealpool.Run(ctx, pool, func() { counter.Add(1) })
	}
	if err := waitAll(futures); err != nil {
		return err
	}
	if got := counter.Load(); got != int64(tasks) {
		return fmt.Errorf("counter = %d, want %d", got, tasks)
	}
	return nil
}

func computationalTasks(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	futures := make([]*stealpool.Future[float64], tasks)
	for i := range futures {
		futures[i] = stealpool.Submit(ctx, pool, func(context.Context) (float64, error) {
			var sum float64
			for j := 0; j < 1000; j++ {
				x := float64(i * j)
				sum += math.Sin(x) * math.Cos(x)
			}
			return sum, nil
		})
	}
	_, err := sumAll(futures)
	return err
}

func ioTasks(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	futures := make([]*stealpool.Future[struct{}], tasks)
	for i := range futures {
		futures[i] = stealpool.Run(ctx, pool, func() { time.Sleep(100 * time.Microsecond) })
	}
	return waitAll(futures)
}

func mixedTasks(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	rng := rand.New(rand.NewPCG(42, 0))
	futures := make([]*stealpool.Future[float64], tasks)
	for i := range futures {
		var fn func(context.Context) (float64, error)
		switch rng.IntN(3) {
		case 0:
			fn = func(context.Context) (float64, error) { return float64(i * 2), nil }
		case 1:
			fn = func(context.Context) (float64, error) {
				var sum float64
				for j := 0; j < 100; j++ {
					sum += math.Sqrt(float64(i * j))
				}
				return sum, nil
			}
		default:
			fn = func(context.Context) (float64, error) {
				time.Sleep(10 * time.Microsecond)
				return float64(i), nil
			}
		}
		futures[i] = stealpool.Submit(ctx, pool, fn)
	}
	_, err := sumAll(futures)
	return err
}

// multiProducer submits from one goroutine per worker at once.
func multiProducer(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	producers := pool.NumWorkers()
	var counter atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < producers; p++ {
		share := tasks / producers
		if p == producers-1 {
			share += tasks % producers
		}
		g.Go(func() error {
			futures := make([]*stealpool.Future[struct{}], share)
			for i := range futures {
				futures[i] = stealpool.Run(gctx, pool, func() { counter.Add(1) })
			}
			return waitAll(futures)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if got := counter.Load(); got != int64(tasks) {
		return fmt.Errorf("counter = %d, want %d", got, tasks)
	}
	return nil
}

// heavyCPU runs one 64×64 matrix product per task; each task returns its
// own result matrix.
func heavyCPU(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	a, b := benchMatrices()
	products, err := workload.MultiplyMany(ctx, pool, a, b, tasks)
	if err != nil {
		return err
	}
	if len(products) != tasks {
		return fmt.Errorf("got %d products, want %d", len(products), tasks)
	}
	return nil
}

// heavyMixed picks, per task, either a matrix product or a 2ms sleep.
func heavyMixed(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	a, b := benchMatrices()
	rng := rand.New(rand.NewPCG(7, 0))
	futures := make([]*stealpool.Future[struct{}], tasks)
	for i := range futures {
		if rng.IntN(2) == 0 {
			futures[i] = stealpool.Run(ctx, pool, func() { _ = workload.Multiply(a, b) })
		} else {
			futures[i] = stealpool.Run(ctx, pool, func() { time.Sleep(2 * time.Millisecond) })
		}
	}
	return waitAll(futures)
}

// heavyRecursive sums 0..tasks-1 by splitting ranges inside tasks.
func heavyRecursive(ctx context.Context, pool *stealpool.Pool, tasks int) error {
	n := int64(tasks)
	sum, err := workload.RecursiveSum(ctx, pool, 0, n, 10_000)
	if err != nil {
		return err
	}
	if want := n * (n - 1) / 2; sum != want {
		return fmt.Errorf("sum = %d, want %d", sum, want)
	}
	return nil
}

func benchMatrices() (*workload.Matrix, *workload.Matrix) {
	a, b := new(workload.Matrix), new(workload.Matrix)
	for i := range a {
		for j := range a[i] {
			a[i][j] = float32(i+j) / workload.MatrixSize
			b[i][j] = float32(i-j) / workload.MatrixSize
		}
	}
	return a, b
}

func waitAll[T any](futures []*stealpool.Future[T]) error {
	var errs []error
	for _, f := range futures {
		if _, err := f.Get(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sumAll(futures []*stealpool.Future[float64]) (float64, error) {
	var total float64
	for _, f := range futures {
		v, err := f.Get()
		if err != nil {
			return total, err
		}
		total += v
	}
	return total, nil
}
