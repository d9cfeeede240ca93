package stealpool_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tahsin716/stealpool"
)

func ExampleSubmit() {
	pool, err := stealpool.New(stealpool.WithNumWorkers(2))
	if err != nil {
		panic(err)
	}
	defer pool.Shutdown()

	fut := stealpool.Submit(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 5 * 10, nil
	})

	v, err := fut.Get()
	fmt.Println(v, err)
	// Output: 50 <nil>
}

func ExampleSubmit_nested() {
	pool, err := stealpool.New(stealpool.WithNumWorkers(2))
	if err != nil {
		panic(err)
	}
	defer pool.Shutdown()

	var hits atomic.Int32
	outer := stealpool.Go(context.Background(), pool, func(ctx context.Context) error {
		// ctx identifies the running worker, so this lands in its own ring.
		stealpool.Run(ctx, pool, func() { hits.Add(1) })
		return nil
	})

	_, _ = outer.Get()
	pool.Drain()
	fmt.Println(hits.Load(), pool.Stats().LocalSubmits)
	// Output: 1 1
}

func ExampleGo() {
	pool, err := stealpool.New(stealpool.WithNumWorkers(1))
	if err != nil {
		panic(err)
	}
	defer pool.Shutdown()

	fut := stealpool.Go(context.Background(), pool, func(context.Context) error {
		panic("boom")
	})

	_, err = fut.Get()
	var pe *stealpool.PanicError
	fmt.Println(errors.As(err, &pe), pe.Value)
	// Output: true boom
}
