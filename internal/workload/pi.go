package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/group"
)

// EstimatePi samples points uniformly in the unit square over tasks tasks
// and returns 4 × the fraction that fell inside the quarter circle.
// The estimate is deterministic for a given seed, points and tasks.
func EstimatePi(ctx context.Context, pool *stealpool.Pool, points int64, tasks int, seed uint64) (float64, error) {
	if points <= 0 || tasks <= 0 {
		return 0, fmt.Errorf("points and tasks must be positive")
	}

	per := points / int64(tasks)
	var hits atomic.Int64

	g := group.New(ctx, pool, group.WithErrorMode(group.FailFast))
	for i := 0; i < tasks; i++ {
		n := per
		if i == tasks-1 {
			n += points % int64(tasks)
		}
		g.Go(func(context.Context) error {
			hits.Add(hitsInCircle(rand.New(rand.NewPCG(seed, uint64(i))), n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("estimate pi: %w", err)
	}

	return 4 * float64(hits.Load()) / float64(points), nil
}

func hitsInCircle(rng *rand.Rand, n int64) int64 {
	var hits int64
	for i := int64(0); i < n; i++ {
		x, y := rng.Float64(), rng.Float64()
		if x*x+y*y <= 1 {
			hits++
		}
	}
	return hits
}
