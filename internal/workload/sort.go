package workload

import (
	"context"
	"fmt"
	"slices"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/group"
)

// ParallelSort sorts data in place: chunks of chunk elements are sorted by
// separate tasks, then merged pairwise in passes of doubling width. The
// merges of one pass are independent and run as tasks too.
func ParallelSort(ctx context.Context, pool *stealpool.Pool, data []int, chunk int) error {
	if chunk <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", chunk)
	}
	n := len(data)
	if n < 2 {
		return nil
	}

	g := group.New(ctx, pool, group.WithErrorMode(group.FailFast))
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func(context.Context) error {
			slices.Sort(data[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sort chunks: %w", err)
	}

	buf := make([]int, n)
	for width := chunk; width < n; width *= 2 {
		g := group.New(ctx, pool, group.WithErrorMode(group.FailFast))
		for lo := 0; lo+width < n; lo += 2 * width {
			mid, hi := lo+width, min(lo+2*width, n)
			g.Go(func(context.Context) error {
				merge(data[lo:hi], mid-lo, buf[lo:hi])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("merge width %d: %w", width, err)
		}
	}
	return nil
}

// merge merges the sorted halves s[:mid] and s[mid:] through tmp, which
// must be as long as s.
func merge(s []int, mid int, tmp []int) {
	i, j, k := 0, mid, 0
	for i < mid && j < len(s) {
		if s[i] <= s[j] {
			tmp[k] = s[i]
			i++
		} else {
			tmp[k] = s[j]
			j++
		}
		k++
	}
	k += copy(tmp[k:], s[i:mid])
	copy(tmp[k:], s[j:])
	copy(s, tmp)
}
