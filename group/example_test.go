package group_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tahsin716/stealpool"
	"github.com/tahsin716/stealpool/group"
)

func Example() {
	pool, err := stealpool.New(stealpool.WithNumWorkers(4))
	if err != nil {
		panic(err)
	}
	defer pool.Shutdown()

	var sum atomic.Int64
	g := group.New(context.Background(), pool)
	for i := 1; i <= 100; i++ {
		g.Go(func(ctx context.Context) error {
			sum.Add(int64(i))
			return nil
		})
	}

	fmt.Println(g.Wait(), sum.Load())
	// Output: <nil> 5050
}

func ExampleWithErrorMode() {
	pool, err := stealpool.New(stealpool.WithNumWorkers(2))
	if err != nil {
		panic(err)
	}
	defer pool.Shutdown()

	g := group.New(context.Background(), pool, group.WithErrorMode(group.CollectAll))
	g.Go(func(context.Context) error { return errors.New("first") })
	g.Go(func(context.Context) error { return nil })
	g.Go(func(context.Context) error { return errors.New("second") })

	fmt.Println(g.Wait())
	// Output: 2 errors: [first; second]
}
