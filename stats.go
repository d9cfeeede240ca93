package stealpool

// Stats is a snapshot of pool statistics.
// All counters are read without locks and may be slightly inconsistent
// with each other during concurrent operation.
//
// Example:
//
//	stats := pool.Stats()
//	fmt.Printf("Completed: %d/%d\n", stats.Completed, stats.Submitted)
type Stats struct {
	// NumWorkers is fixed at pool creation.
	NumWorkers int

	// Submitted counts tasks accepted by Submit since creation.
	Submitted uint64

	// Completed counts tasks that ran, including those that panicked.
	Completed uint64

	// Panicked counts tasks whose closure panicked.
	Panicked uint64

	// Rejected counts submissions refused because the pool had stopped.
	Rejected uint64

	// Swept counts tasks dropped by Shutdown without running.
	Swept uint64

	// LocalSubmits and OverflowSubmits split Submitted by route.
	LocalSubmits    uint64
	OverflowSubmits uint64

	// Stolen counts tasks taken from a peer's ring.
	Stolen uint64

	// Executing is the number of tasks inside their closure right now.
	Executing int

	// OverflowDepth is the advisory size of the overflow stack.
	OverflowDepth int

	// LocalDepth is the total number of tasks in worker rings.
	LocalDepth int

	// Pending is OverflowDepth + Executing, the same figure Pool.Pending
	// returns. It does not include LocalDepth.
	Pending int

	// Workers has one entry per worker, indexed by worker id.
	Workers []WorkerStats
}

// WorkerStats contains statistics for an individual worker.
type WorkerStats struct {
	// WorkerID is the worker's index (0-based).
	WorkerID int

	// Executed counts tasks this worker ran, including stolen ones.
	Executed uint64

	// Stolen counts tasks this worker took from peers.
	Stolen uint64

	// Panicked counts tasks that panicked on this worker.
	Panicked uint64

	// QueueDepth is the current number of tasks in this worker's ring.
	QueueDepth int

	// Capacity is the usable capacity of the ring.
	Capacity int

	// Sleeping reports whether the worker is in its long backoff sleep.
	Sleeping bool
}

// Stats returns a snapshot of pool and per-worker statistics.
func (p *Pool) Stats() Stats {
	s := Stats{
		NumWorkers:      len(p.workers),
		Submitted:       p.metrics.submitted.Load(),
		Rejected:        p.metrics.rejected.Load(),
		Swept:           p.metrics.swept.Load(),
		LocalSubmits:    p.metrics.localSubmits.Load(),
		OverflowSubmits: p.metrics.overflowSubmits.Load(),
		Executing:       int(p.executing.Load()),
		OverflowDepth:   p.overflow.len(),
		Workers:         make([]WorkerStats, len(p.workers)),
	}

	for i, w := range p.workers {
		ws := WorkerStats{
			WorkerID:   i,
			Executed:   w.tasksExecuted.Load(),
			Stolen:     w.tasksStolen.Load(),
			Panicked:   w.tasksPanicked.Load(),
			QueueDepth: w.queue.len(),
			Capacity:   w.queue.capacity(),
			Sleeping:   w.sleeping.Load(),
		}
		s.Completed += ws.Executed
		s.Stolen += ws.Stolen
		s.Panicked += ws.Panicked
		s.LocalDepth += ws.QueueDepth
		s.Workers[i] = ws
	}

	s.Pending = s.Executing + s.OverflowDepth
	if s.Pending < 0 {
		s.Pending = 0
	}
	return s
}
