package deadlinepool

import (
	"context"
	"time"
)

// Task is the unit of work run by the pool. It must watch ctx: once the task
// is timed out or cancelled, ctx is cancelled and whatever Task returns
// afterwards is discarded.
type Task func(ctx context.Context) (interface{}, error)

// Job holds job data
type Job struct {
	Name string
	Task Task
	// Timeout of 0 means the pool default, a negative Timeout means no
	// per-job limit (the global deadline still applies).
	Timeout time.Duration
	// Store, if set, stays reachable through Future.Stored after the job is
	// done, e.g. to recover an external job id.
	Store interface{}
}
