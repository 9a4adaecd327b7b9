package deadlinepool

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when retrieving the result of a task that was
	// cancelled by a caller.
	ErrCancelled = errors.New("deadlinepool: task cancelled")

	// ErrTimedOut is returned when retrieving the result of a task that was
	// cancelled because it ran past its deadline. It wraps ErrCancelled, so
	// errors.Is(err, ErrCancelled) holds for both kinds of cancellation.
	ErrTimedOut = fmt.Errorf("deadlinepool: task timed out: %w", ErrCancelled)

	// ErrPoolStopped is returned when submitting to a stopped pool
	ErrPoolStopped = errors.New("deadlinepool: pool stopped")

	// ErrWaitTimeout is returned by GetTimeout when the task is still not
	// done after the wait bound. The task itself is unaffected.
	ErrWaitTimeout = errors.New("deadlinepool: wait for result timed out")
)

// ExecutionError wraps an error returned (or a panic raised) by the task itself
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("deadlinepool: task failed: %v", e.Err)
	}
	return fmt.Sprintf("deadlinepool: task %q failed: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
