package stealpool

import (
	"sync/atomic"
)

// overflowStack is the shared, unbounded fallback queue.
//
// It is a Treiber stack: push and pop both CAS the head pointer, so the
// order is last-in-first-out. Tasks land here when the submitter is not a
// worker of the pool or when the worker's own ring is full.
//
// A popped task is never pushed again, and the garbage collector does not
// recycle a node that another goroutine still references, so the classic
// ABA hazard on head does not arise. next is left untouched after a pop:
// a concurrent popper that lost the race may still be reading it.
type overflowStack struct {
	_ CacheLinePad

	head atomic.Pointer[task]

	_ CacheLinePad

	// size is advisory (used for quiescence polling and stats)
	size atomic.Int64
}

// push links t in front of the current head. Safe for any goroutine.
func (s *overflowStack) push(t *task) {
	for {
		head := s.head.Load()
		t.next = head
		if s.head.CompareAndSwap(head, t) {
			s.size.Add(1)
			return
		}
	}
}

// pop unlinks and returns the current head, or nil when the stack is empty.
// Safe for any goroutine.
func (s *overflowStack) pop() *task {
	for {
		head := s.head.Load()
		if head == nil {
			return nil
		}
		if s.head.CompareAndSwap(head, head.next) {
			s.size.Add(-1)
			return head
		}
	}
}

// len returns the advisory number of tasks in the stack.
func (s *overflowStack) len() int {
	n := s.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// detach atomically takes the whole chain and returns how many tasks it held.
// fn is called for each task in stack order.
func (s *overflowStack) detach(fn func(*task)) int {
	head := s.head.Swap(nil)

	n := 0
	for head != nil {
		next := head.next
		s.size.Add(-1)
		fn(head)
		head = next
		n++
	}
	return n
}
