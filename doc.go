// Package deadlinepool wraps gammazero/workerpool with per-job timeouts and a
// global deadline
/*
 * ------------------------------------------------------------------------------------------
 *  Many thanks to
 *              github.com/gammazero/workerpool & github.com/gammazero/deque
 *
 *  Please give them a star on GitHub!
 *
 *  They're really doing all the heavy lifting for us
 * ------------------------------------------------------------------------------------------
 */
//
// Deadlines
//
// A job's clock starts when a worker picks it up, not when it is submitted, so
// time spent waiting in the queue is free. Its deadline is the earlier of
// start+timeout and the pool's global deadline. A job picked up after the
// global deadline is timed out without running.
//
// Running jobs sit in a deadline queue. One keeper goroutine takes them out as
// they become due and times them out, which cancels the context handed to the
// job. A job that finishes first removes itself, and a late timeout is a no-op.
//
// Cancellation is cooperative. We cannot stop a job that ignores its context,
// whether it is a long running http request or simply `time.Sleep`. Its Future
// is done (and timed out) right away, the value it eventually returns is
// dropped, and its worker stays busy until it returns.
//
// Results
//
// Future.Get tells the outcomes apart: ErrTimedOut for a job that ran out of
// time, ErrCancelled for one cancelled by a caller, *ExecutionError for a job
// that failed. Every done Future is also offered to the pool's Sink, if any.
package deadlinepool
