package stealpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverflowStack_LIFO(t *testing.T) {
	var s overflowStack
	tasks := []*task{{}, {}, {}}
	for _, tk := range tasks {
		s.push(tk)
	}
	assert.Equal(t, 3, s.len())

	assert.Same(t, tasks[2], s.pop())
	assert.Same(t, tasks[1], s.pop())
	assert.Same(t, tasks[0], s.pop())
	assert.Nil(t, s.pop())
	assert.Equal(t, 0, s.len())
}

func TestOverflowStack_Detach(t *testing.T) {
	var s overflowStack
	for i := 0; i < 5; i++ {
		s.push(&task{})
	}

	visited := 0
	n := s.detach(func(*task) { visited++ })
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, visited)
	assert.Equal(t, 0, s.len())
	assert.Nil(t, s.pop())
}

func TestOverflowStack_ConcurrentPushPop(t *testing.T) {
	const (
		producers   = 8
		perProducer = 10000
		consumers   = 4
		total       = producers * perProducer
	)

	var s overflowStack
	hits := make([]atomic.Int32, total)
	ctx := context.Background()

	var (
		produced sync.WaitGroup
		consumed sync.WaitGroup
		finished atomic.Bool
		ran      atomic.Int64
	)

	for c := 0; c < consumers; c++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for {
				if tk := s.pop(); tk != nil {
					tk.run(ctx)
					ran.Add(1)
					continue
				}
				if finished.Load() && s.len() == 0 {
					return
				}
			}
		}()
	}

	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(base int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				s.push(countingTask(hits, base+i))
			}
		}(p * perProducer)
	}

	produced.Wait()
	finished.Store(true)
	consumed.Wait()

	// A pop can land between a push's CAS and its size increment; sweep
	// whatever the consumers left behind.
	for tk := s.pop(); tk != nil; tk = s.pop() {
		tk.run(ctx)
		ran.Add(1)
	}

	require.EqualValues(t, total, ran.Load())
	for i := range hits {
		if n := hits[i].Load(); n != 1 {
			t.Fatalf("task %d ran %d times", i, n)
		}
	}
}
