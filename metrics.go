package stealpool

import "time"

// SubmitRoute tells where a submission was placed.
type SubmitRoute int

const (
	// RouteLocal is the submitting worker's own ring.
	RouteLocal SubmitRoute = iota
	// RouteOverflow is the shared overflow stack.
	RouteOverflow
)

func (r SubmitRoute) String() string {
	switch r {
	case RouteLocal:
		return "local"
	case RouteOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Metrics receives execution events from the pool. Implementations are called
// from worker and submitter goroutines concurrently and must not block.
//
// See observability/prometheus for a Prometheus-backed implementation.
type Metrics interface {
	// RecordSubmit is called once per accepted submission.
	RecordSubmit(route SubmitRoute)

	// RecordTaskDuration is called after each task ran on workerID.
	RecordTaskDuration(workerID int, d time.Duration)

	// RecordTaskPanic is called when a task panicked on workerID.
	RecordTaskPanic(workerID int)

	// RecordSteal is called when thiefID took a task from victimID's ring.
	RecordSteal(thiefID, victimID int)
}
