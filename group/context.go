package group

import "context"

// taskContext takes cancellation from the group and values from the
// worker first, so the worker token wins over any token in the group's
// parent.
type taskContext struct {
	context.Context
	worker context.Context
}

func (c taskContext) Value(key any) any {
	if v := c.worker.Value(key); v != nil {
		return v
	}
	return c.Context.Value(key)
}
