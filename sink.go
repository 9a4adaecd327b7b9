package deadlinepool

import (
	"sync"
)

// Sink receives every Future once it is done, whatever the outcome.
// Offer is called on the goroutine that finished the Future and must not
// block.
type Sink interface {
	Offer(f *Future) bool
}

// SinkFunc adapts a function to Sink
type SinkFunc func(f *Future) bool

// Offer implements Sink
func (fn SinkFunc) Offer(f *Future) bool { return fn(f) }

// ChanSink delivers done futures on a buffered channel, in completion order.
// Futures are dropped when the buffer is full.
type ChanSink chan *Future

// NewChanSink creates a ChanSink with room for size futures
func NewChanSink(size int) ChanSink {
	return make(ChanSink, size)
}

// Offer implements Sink
func (c ChanSink) Offer(f *Future) bool {
	select {
	case c <- f:
		return true
	default:
		return false
	}
}

// Collector aggregates the responses of every done Future
type Collector struct {
	mu        sync.Mutex
	responses []Response
}

// Offer implements Sink. It never drops.
func (c *Collector) Offer(f *Future) bool {
	// f is done, so Response does not block
	r := f.Response()
	c.mu.Lock()
	c.responses = append(c.responses, r)
	c.mu.Unlock()
	return true
}

// Responses returns a copy of what has been collected so far
func (c *Collector) Responses() []Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Response, len(c.responses))
	copy(out, c.responses)
	return out
}

// Len returns the number of collected responses
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses)
}
