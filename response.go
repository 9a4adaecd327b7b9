package deadlinepool

import (
	"time"
)

// Response holds job results
type Response struct {
	Error           error
	Data            interface{}
	name            string
	id              string
	timedOut        bool
	runtimeDuration time.Duration
}

// RuntimeDuration returns the amount of time it took to run the job. It is 0
// for jobs that never started.
func (r *Response) RuntimeDuration() time.Duration {
	return r.runtimeDuration
}

// Name returns the job name
func (r *Response) Name() string {
	return r.name
}

// ID returns the id of the Future the response came from
func (r *Response) ID() string {
	return r.id
}

// TimedOut reports whether the job was timed out
func (r *Response) TimedOut() bool {
	return r.timedOut
}
