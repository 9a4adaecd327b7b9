package deadline

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Entry is anything that can sit in a Queue waiting for its deadline.
// A zero Deadline means the entry never becomes due on its own.
type Entry interface {
	Deadline() time.Time
	TimeOut() bool
}

type item struct {
	entry    Entry
	deadline time.Time
	seq      uint64
	index    int
}

// entryHeap implements heap.Interface
type entryHeap []*item

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	a, b := h[i].deadline, h[j].deadline
	switch {
	case a.Equal(b):
		return h[i].seq < h[j].seq
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	}
	return a.Before(b)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a blocking collection of entries ordered by ascending deadline.
// Entries with equal deadlines come out in insertion order.
type Queue struct {
	mu      sync.Mutex
	pq      entryHeap
	byEntry map[Entry]*item
	seq     uint64
	changed chan struct{}
	closed  bool
}

// NewQueue creates an empty Queue
func NewQueue() *Queue {
	return &Queue{
		byEntry: make(map[Entry]*item),
		changed: make(chan struct{}),
	}
}

// Push inserts e using its current Deadline. Pushing an entry that is already
// queued re-sorts it instead of adding a second copy. Push reports false once
// the queue has been closed.
func (q *Queue) Push(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if it, ok := q.byEntry[e]; ok {
		it.deadline = e.Deadline()
		heap.Fix(&q.pq, it.index)
		q.notify()
		return true
	}

	q.seq++
	it := &item{entry: e, deadline: e.Deadline(), seq: q.seq}
	heap.Push(&q.pq, it)
	q.byEntry[e] = it

	// Only a new head changes how long Take has to wait
	if it.index == 0 {
		q.notify()
	}
	return true
}

// Remove deletes e from the queue. It is a no-op if e is not present.
func (q *Queue) Remove(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.byEntry[e]
	if !ok {
		return false
	}
	heap.Remove(&q.pq, it.index)
	delete(q.byEntry, e)
	return true
}

// Contains reports whether e is queued
func (q *Queue) Contains(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byEntry[e]
	return ok
}

// Len returns the number of queued entries
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

// Take removes and returns the earliest entry once its deadline has arrived.
// It blocks until then, re-evaluating whenever an earlier entry is pushed.
// Take returns ctx.Err() if ctx is done first, and ErrClosed once the queue
// is closed.
func (q *Queue) Take(ctx context.Context) (Entry, error) {
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}

		wait := time.Duration(-1)
		if len(q.pq) > 0 {
			head := q.pq[0]
			if !head.deadline.IsZero() {
				wait = time.Until(head.deadline)
				if wait <= 0 {
					heap.Pop(&q.pq)
					delete(q.byEntry, head.entry)
					q.mu.Unlock()
					return head.entry, nil
				}
			}
		}
		changed := q.changed
		q.mu.Unlock()

		var fire <-chan time.Time
		if wait > 0 {
			timer.Reset(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		case <-fire:
		}
		stopTimer(timer)
	}
}

// Close makes every later Push fail and wakes all blocked Take calls.
// Entries still queued stay there until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notify()
}

// Drain removes and returns every queued entry in deadline order
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.pq))
	for len(q.pq) > 0 {
		it := heap.Pop(&q.pq).(*item)
		out = append(out, it.entry)
	}
	q.byEntry = make(map[Entry]*item)
	return out
}

// notify wakes every waiter. Caller must hold q.mu.
func (q *Queue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
