// Package sleeper has jobs that do nothing but take time, for exercising
// timeouts.
package sleeper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// MinBusyDelay is the shortest delay a BusySleeper can honour
const MinBusyDelay = 10 * time.Millisecond

// Sleeper sleeps for Delay and returns Value, or gives up when ctx is done
type Sleeper struct {
	Delay time.Duration
	Value int
}

// Run implements deadlinepool.Task
func (s *Sleeper) Run(ctx context.Context) (interface{}, error) {
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return s.Value, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// BusySleeper keeps a CPU busy for Delay, checking ctx between rounds
type BusySleeper struct {
	Delay time.Duration

	finished   int32
	iterations int64
}

// NewBusySleeper fails for delays under MinBusyDelay
func NewBusySleeper(delay time.Duration) (*BusySleeper, error) {
	if delay < MinBusyDelay {
		return nil, fmt.Errorf("sleeper: cannot finish in %v, need at least %v", delay, MinBusyDelay)
	}
	return &BusySleeper{Delay: delay}, nil
}

// Run implements deadlinepool.Task
func (b *BusySleeper) Run(ctx context.Context) (interface{}, error) {
	deadline := time.Now().Add(b.Delay)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	vals := make([]float64, 500)
	for i := range vals {
		vals[i] = 100 * rnd.Float64()
	}

	var res float64
	for time.Now().Before(deadline) {
		sum := 0.0
		for i, v := range vals {
			vals[i] = math.Cos(v) * math.Cos(rnd.Float64())
			sum += vals[i]
		}
		res += math.Cos(sum)
		atomic.AddInt64(&b.iterations, 1)

		if err := ctx.Err(); err != nil {
			return nil, context.Cause(ctx)
		}
	}

	atomic.StoreInt32(&b.finished, 1)
	return int(res), nil
}

// Finished reports whether Run got to the end of its delay
func (b *BusySleeper) Finished() bool {
	return atomic.LoadInt32(&b.finished) == 1
}

// Iterations returns how many rounds Run has done
func (b *BusySleeper) Iterations() int64 {
	return atomic.LoadInt64(&b.iterations)
}
