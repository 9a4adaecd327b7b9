// Package deadline holds the deadline-ordered wait queue and the background
// keeper that times out entries as they become due.
package deadline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Queue.Take once the queue has been closed
var ErrClosed = errors.New("deadline: queue closed")

const (
	notStarted int32 = iota
	running
	stopped
)

// Keeper takes due entries from a Queue and times them out. A Keeper runs at
// most once: after Stop it cannot be restarted.
type Keeper struct {
	queue  *Queue
	log    logrus.FieldLogger
	state  int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// OnTimeout, if set before Start, is called with every entry whose
	// TimeOut took effect.
	OnTimeout func(Entry)
}

// NewKeeper creates a Keeper watching q. It panics if q is nil.
func NewKeeper(q *Queue, log logrus.FieldLogger) *Keeper {
	if q == nil {
		panic("deadline: keeper requires a non-nil queue")
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Keeper{
		queue:  q,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the keeper goroutine
func (k *Keeper) Start() {
	if !atomic.CompareAndSwapInt32(&k.state, notStarted, running) {
		return
	}
	go k.loop()
}

// Running reports whether the keeper loop is active
func (k *Keeper) Running() bool {
	return atomic.LoadInt32(&k.state) == running
}

// Stop signals the loop to exit and waits until it has timed out every entry
// left in the queue. The queue is closed afterwards, so entries pushed later
// are refused. Stop on a keeper that was never started drains the queue
// synchronously.
func (k *Keeper) Stop() {
	k.once.Do(func() {
		prev := atomic.SwapInt32(&k.state, stopped)
		k.cancel()
		if prev == running {
			<-k.done
			return
		}
		k.retire()
		close(k.done)
	})
}

// Done is closed once the keeper has fully stopped
func (k *Keeper) Done() <-chan struct{} {
	return k.done
}

func (k *Keeper) loop() {
	defer close(k.done)
	k.log.Debug("deadline keeper started")

	for atomic.LoadInt32(&k.state) == running {
		e, err := k.queue.Take(k.ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			// interrupted, go back and look at the state
			continue
		}
		k.expire(e)
	}

	k.retire()
}

// retire closes the queue and times out whatever is still in it
func (k *Keeper) retire() {
	k.queue.Close()
	left := k.queue.Drain()
	if len(left) > 0 {
		k.log.WithField("count", len(left)).Info("deadline keeper timing out remaining tasks on shutdown")
	}
	for _, e := range left {
		k.expire(e)
	}
	k.log.Debug("deadline keeper stopped")
}

func (k *Keeper) expire(e Entry) {
	if !e.TimeOut() {
		return
	}
	k.log.WithField("deadline", e.Deadline()).Debug("timed out task")
	if k.OnTimeout != nil {
		k.OnTimeout(e)
	}
}
