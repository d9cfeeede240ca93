package stealpool

import "fmt"

// Common errors returned by the pool.
var (
	// ErrPoolShutdown is the outcome of a task submitted to a pool that has
	// been shut down, or of a task still queued when teardown swept the
	// queues.
	//
	// Example:
	//  _, err := stealpool.Submit(ctx, pool, work).Get()
	//  if errors.Is(err, stealpool.ErrPoolShutdown) {
	//      log.Println("task never ran: pool is shutdown")
	//  }
	ErrPoolShutdown = &PoolError{msg: "pool is shutdown"}

	// ErrNilTask is the outcome of submitting a nil function.
	ErrNilTask = &PoolError{msg: "task is nil"}
)

// PoolError represents an error that occurred within the pool.
//
// PoolError implements the error interface and supports error unwrapping
// via errors.Unwrap.
type PoolError struct {
	msg string // Human-readable error message
	err error  // Underlying error (if any)
}

// Error returns a formatted error message.
// If an underlying error exists, it is included in the output.
func (e *PoolError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("stealpool: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("stealpool: %s", e.msg)
}

// Unwrap returns the underlying error, allowing use with errors.Is and errors.As.
func (e *PoolError) Unwrap() error {
	return e.err
}

// ErrInvalidConfig creates an error for invalid pool configuration.
// This is returned by New when validation fails.
func ErrInvalidConfig(msg string) error {
	return &PoolError{msg: "invalid config: " + msg}
}

// PanicError wraps a value recovered from a panicking task, with the stack
// of the goroutine at the time of the panic.
type PanicError struct {
	Value interface{}
	Stack string
}

// Error implements the error interface for PanicError.
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap returns the panic value if it is itself an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
