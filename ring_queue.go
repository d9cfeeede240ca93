package stealpool

import (
	"sync/atomic"
)

// CacheLinePad prevents false sharing by padding to cache line size (64 bytes)
type CacheLinePad struct {
	_ [64]byte
}

// DefaultQueueSize is the per-worker ring capacity used when none is configured.
const DefaultQueueSize = 4096

// ringQueue is the bounded, per-worker stealable queue.
//
// Properties:
// - Only the owning worker pushes (advances tail)
// - The owner pops and thieves steal from the same end (head)
// - head is advanced with CAS, tail with a plain atomic store
// - Fixed capacity; a full queue rejects the push, it never grows
//
// head and tail are monotonically increasing positions. They are mapped onto
// the slot array with mask, so a slot index only repeats after capacity
// positions and a stale head can never match a live one.
type ringQueue struct {
	_ CacheLinePad

	// head is the consumption position (owner pop and thieves, CAS only)
	head atomic.Uint64

	_ CacheLinePad

	// tail is the production position (owner only)
	tail atomic.Uint64

	_ CacheLinePad

	// pushing guards tail against a second writer. See worker.pushLocal.
	pushing atomic.Bool

	_ CacheLinePad

	slots []atomic.Pointer[task]
	mask  uint64
	size  uint64
}

// newRingQueue creates a ring with the given capacity.
// Capacity must be a power of two.
func newRingQueue(capacity int) *ringQueue {
	if !isPowerOfTwo(capacity) || capacity < 2 {
		panic("stealpool: ring capacity must be a power of two >= 2")
	}

	return &ringQueue{
		slots: make([]atomic.Pointer[task], capacity),
		mask:  uint64(capacity - 1),
		size:  uint64(capacity),
	}
}

// push stores t at the tail. Owner only.
// Returns false if the queue is full; the caller keeps ownership of t.
//
// One slot is always left empty, matching the wrapped-index rule
// "full when advancing tail would make it equal to head".
func (q *ringQueue) push(t *task) bool {
	tail := q.tail.Load()
	head := q.head.Load()

	if tail-head >= q.size-1 {
		return false
	}

	// Slot first, then tail: a consumer that observes the new tail
	// also observes the slot contents.
	q.slots[tail&q.mask].Store(t)
	q.tail.Store(tail + 1)
	return true
}

// pop removes the task at head. Owner only.
// Returns nil if the queue is empty.
//
// Thieves remove from the same end, so the head advance is a CAS; on a lost
// race the owner simply looks again.
func (q *ringQueue) pop() *task {
	for {
		head := q.head.Load()
		if head >= q.tail.Load() {
			return nil
		}

		slot := &q.slots[head&q.mask]
		t := slot.Load()

		if q.head.CompareAndSwap(head, head+1) {
			slot.CompareAndSwap(t, nil)
			return t
		}
	}
}

// steal attempts to take the task at head. Any goroutine except the owner.
// Returns nil if the queue is empty or the race was lost; the caller decides
// whether to try again, here or elsewhere.
func (q *ringQueue) steal() *task {
	head := q.head.Load()
	tail := q.tail.Load()

	if head >= tail {
		return nil
	}

	// Speculative read: only meaningful if the CAS below succeeds
	slot := &q.slots[head&q.mask]
	t := slot.Load()

	if !q.head.CompareAndSwap(head, head+1) {
		return nil
	}

	// Clear only if the owner has not already reused the slot
	slot.CompareAndSwap(t, nil)
	return t
}

// empty reports whether the queue looked empty at the moment of the call.
func (q *ringQueue) empty() bool {
	return q.head.Load() == q.tail.Load()
}

// len returns an estimate of the number of queued tasks.
func (q *ringQueue) len() int {
	head := q.head.Load()
	tail := q.tail.Load()

	if tail < head {
		return 0
	}
	return int(tail - head)
}

// capacity returns the number of tasks the queue can hold at once.
func (q *ringQueue) capacity() int {
	return int(q.size - 1)
}

// drain removes every queued task. Only call when no worker is running.
func (q *ringQueue) drain(fn func(*task)) {
	for t := q.pop(); t != nil; t = q.pop() {
		fn(t)
	}
}
