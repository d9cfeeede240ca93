package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tahsin716/stealpool"
)

// RecursiveSum adds the integers in [lo, hi). A task holding a range longer
// than cutoff splits off its upper half as a new task and keeps the lower
// half. The split is submitted with the task's own context, so it lands on
// that worker's ring and idle workers steal it from there.
//
// Tasks never wait on the pieces they split off; the caller waits for the
// last piece to report in.
func RecursiveSum(ctx context.Context, pool *stealpool.Pool, lo, hi, cutoff int64) (int64, error) {
	if cutoff <= 0 {
		return 0, fmt.Errorf("cutoff must be positive, got %d", cutoff)
	}
	if hi <= lo {
		return 0, nil
	}

	s := &summation{pool: pool, cutoff: cutoff, done: make(chan struct{})}
	s.pending.Store(1)
	s.spawn(ctx, lo, hi)

	select {
	case <-s.done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	if s.err != nil {
		return 0, s.err
	}
	return s.total.Load(), nil
}

type summation struct {
	pool   *stealpool.Pool
	cutoff int64

	total   atomic.Int64
	pending atomic.Int64 // pieces submitted and not yet finished
	done    chan struct{}

	errOnce sync.Once
	err     error
}

// spawn submits [lo, hi). The caller has already counted it in pending.
func (s *summation) spawn(ctx context.Context, lo, hi int64) {
	fut := stealpool.Go(ctx, s.pool, func(ctx context.Context) error {
		s.run(ctx, lo, hi)
		return nil
	})

	// a rejected submission is resolved before Go returns and never runs
	if fut.Ready() {
		if _, err := fut.Get(); errors.Is(err, stealpool.ErrPoolShutdown) {
			s.finish(err)
		}
	}
}

func (s *summation) run(ctx context.Context, lo, hi int64) {
	completed := false
	defer func() {
		if !completed {
			s.finish(fmt.Errorf("sum of [%d, %d) panicked", lo, hi))
		}
	}()

	for hi-lo > s.cutoff {
		mid := lo + (hi-lo)/2
		s.pending.Add(1)
		s.spawn(ctx, mid, hi)
		hi = mid
	}

	var sum int64
	for i := lo; i < hi; i++ {
		sum += i
	}
	s.total.Add(sum)

	completed = true
	s.finish(nil)
}

func (s *summation) finish(err error) {
	if err != nil {
		s.errOnce.Do(func() { s.err = err })
	}
	if s.pending.Add(-1) == 0 {
		close(s.done)
	}
}
