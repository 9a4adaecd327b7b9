package deadlinepool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oze4/deadlinepool/internal/deadline"
)

const (
	stateNew int32 = iota
	stateCompleted
	stateCancelled
	stateTimedOut
)

// Future is the handle to a submitted Job. A Future becomes done exactly once,
// by finishing its task, by being cancelled, or by being timed out; whichever
// happens first wins and the others are no-ops.
type Future struct {
	id             string
	name           string
	task           Task
	store          interface{}
	timeout        time.Duration
	globalDeadline time.Time

	queue    *deadline.Queue
	sink     Sink
	onFinish func(*Future)

	state    int32
	deadline atomic.Pointer[time.Time]
	started  atomic.Pointer[time.Time]

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	// written once before done is closed
	result          interface{}
	err             error
	runtimeDuration time.Duration
}

// newFuture panics if queue is nil
func newFuture(job Job, timeout time.Duration, globalDeadline time.Time, queue *deadline.Queue, sink Sink) *Future {
	if queue == nil {
		panic("deadlinepool: future requires a deadline queue")
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Future{
		id:             uuid.NewString(),
		name:           job.Name,
		task:           job.Task,
		store:          job.Store,
		timeout:        timeout,
		globalDeadline: globalDeadline,
		queue:          queue,
		sink:           sink,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// run executes the task on the calling goroutine. The effective deadline is
// computed here, so time spent waiting for a worker does not count against
// the task's timeout.
func (f *Future) run() {
	if f.IsDone() {
		return
	}

	now := time.Now()
	if !f.globalDeadline.IsZero() && !now.Before(f.globalDeadline) {
		f.TimeOut()
		return
	}

	dl := effectiveDeadline(now, f.timeout, f.globalDeadline)
	f.started.Store(&now)
	f.deadline.Store(&dl)

	if !f.queue.Push(f) {
		// nobody is left to time us out
		f.TimeOut()
		return
	}
	if f.IsDone() {
		// cancelled between the check above and Push
		f.queue.Remove(f)
		return
	}

	v, err := f.call()
	f.complete(v, err)
}

func (f *Future) call() (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if f.task == nil {
		return nil, nil
	}
	return f.task(f.ctx)
}

func (f *Future) complete(v interface{}, err error) {
	if !atomic.CompareAndSwapInt32(&f.state, stateNew, stateCompleted) {
		return
	}
	f.result = v
	if err != nil {
		f.err = &ExecutionError{Name: f.name, Err: err}
	}
	f.finish(nil)
}

func (f *Future) abort(to int32, cause error) bool {
	if !atomic.CompareAndSwapInt32(&f.state, stateNew, to) {
		return false
	}
	f.finish(cause)
	return true
}

// finish runs once, right after the winning state transition
func (f *Future) finish(cause error) {
	if s := f.started.Load(); s != nil {
		f.runtimeDuration = time.Since(*s)
	}
	f.cancel(cause)
	close(f.done)

	f.queue.Remove(f)
	if f.sink != nil {
		f.sink.Offer(f)
	}
	if f.onFinish != nil {
		f.onFinish(f)
	}
}

// TimeOut cancels the task because it ran out of time. It is a no-op on a
// task that is already done. TimeOut reports whether the task is timed out,
// which is also the case when an earlier call already timed it out.
func (f *Future) TimeOut() bool {
	if f.abort(stateTimedOut, ErrTimedOut) {
		return true
	}
	return f.IsTimedOut()
}

// Cancel cancels the task on behalf of a caller. It reports false if the task
// was already done.
func (f *Future) Cancel() bool {
	return f.abort(stateCancelled, ErrCancelled)
}

// IsDone reports whether the task finished, was cancelled, or timed out
func (f *Future) IsDone() bool {
	return atomic.LoadInt32(&f.state) != stateNew
}

// IsCancelled reports whether the task was cancelled, including by timing out
func (f *Future) IsCancelled() bool {
	s := atomic.LoadInt32(&f.state)
	return s == stateCancelled || s == stateTimedOut
}

// IsTimedOut reports whether the task was timed out
func (f *Future) IsTimedOut() bool {
	return atomic.LoadInt32(&f.state) == stateTimedOut
}

// Done is closed when the task is done
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the task and returns its result. A timed out task returns
// ErrTimedOut, a cancelled one ErrCancelled and a failed one an
// *ExecutionError.
func (f *Future) Get() (interface{}, error) {
	<-f.done
	return f.outcome()
}

// GetTimeout is Get bounded by d. It returns ErrWaitTimeout if the task is
// not done in time.
func (f *Future) GetTimeout(d time.Duration) (interface{}, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.done:
		return f.outcome()
	case <-t.C:
		// done may have closed at the same instant
		if f.IsDone() {
			<-f.done
			return f.outcome()
		}
		return nil, ErrWaitTimeout
	}
}

// GetContext is Get bounded by ctx
func (f *Future) GetContext(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) outcome() (interface{}, error) {
	switch atomic.LoadInt32(&f.state) {
	case stateTimedOut:
		return nil, ErrTimedOut
	case stateCancelled:
		return nil, ErrCancelled
	}
	return f.result, f.err
}

// Response waits for the task and returns its result as a Response
func (f *Future) Response() Response {
	data, err := f.Get()
	return Response{
		Data:            data,
		Error:           err,
		name:            f.name,
		id:              f.id,
		timedOut:        f.IsTimedOut(),
		runtimeDuration: f.runtimeDuration,
	}
}

// Stored returns Job.Store, if one was given
func (f *Future) Stored() (interface{}, bool) {
	return f.store, f.store != nil
}

// ID returns the unique id of the Future
func (f *Future) ID() string {
	return f.id
}

// Name returns the job name
func (f *Future) Name() string {
	return f.name
}

// Timeout returns the timeout requested for the task; <= 0 means none
func (f *Future) Timeout() time.Duration {
	return f.timeout
}

// Deadline returns the instant the task will be timed out. It is zero until
// the task starts running, and stays zero if the task has no limit at all.
func (f *Future) Deadline() time.Time {
	if dl := f.deadline.Load(); dl != nil {
		return *dl
	}
	return time.Time{}
}

// effectiveDeadline is the earlier of start+timeout and the global deadline.
// Zero means unbounded.
func effectiveDeadline(start time.Time, timeout time.Duration, global time.Time) time.Time {
	var dl time.Time
	if timeout > 0 {
		dl = start.Add(timeout)
		if dl.Before(start) {
			// overflow
			dl = time.Time{}
		}
	}
	if !global.IsZero() && (dl.IsZero() || global.Before(dl)) {
		dl = global
	}
	return dl
}
