package deadlinepool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"

	"github.com/oze4/deadlinepool/internal/deadline"
)

// New creates *Pool with maxWorkers workers. A defaultJobTimeout <= 0 means
// jobs submitted without a timeout run without a per-job limit.
func New(maxWorkers int, defaultJobTimeout time.Duration, opts ...Option) *Pool {
	o := NewOptions(opts...)

	m, err := newMetrics(o.MetricsNamespace, o.Registerer)
	if err != nil {
		o.Logger.WithError(err).Error("could not register pool metrics, running without them")
	}

	q := deadline.NewQueue()
	p := &Pool{
		WorkerPool: workerpool.New(maxWorkers),
		queue:      q,
		keeper:     deadline.NewKeeper(q, o.Logger),
		sink:       o.Sink,
		log:        o.Logger,
		metrics:    m,
		terminated: make(chan struct{}),
	}
	p.settings.Store(&settings{
		defaultTimeout: defaultJobTimeout,
		globalDeadline: o.GlobalDeadline,
	})
	p.keeper.OnTimeout = p.onKeeperTimeout
	p.keeper.Start()

	p.log.WithFields(logrus.Fields{
		"workers":         maxWorkers,
		"default_timeout": defaultJobTimeout,
	}).Debug("pool started")
	return p
}

// Pool extends `github.com/gammazero/workerpool` with per-job timeouts and
// a global deadline
type Pool struct {
	*workerpool.WorkerPool
	queue      *deadline.Queue
	keeper     *deadline.Keeper
	settings   atomic.Pointer[settings]
	sink       Sink
	log        logrus.FieldLogger
	metrics    *metrics
	pending    sync.Map // *Future submitted but not picked up by a worker
	mu         sync.RWMutex
	stopped    bool
	once       sync.Once
	terminated chan struct{}
}

// settings is replaced as a whole, never mutated
type settings struct {
	defaultTimeout time.Duration
	globalDeadline time.Time
}

// Submit queues a job and returns its Future without waiting. The job is
// limited by Job.Timeout, or the default timeout if that is 0, and by the
// global deadline.
func (p *Pool) Submit(job Job) (*Future, error) {
	s := p.settings.Load()
	return p.submit(job, p.getTimeout(job, s), s.globalDeadline)
}

// SubmitTimeout is Submit with an explicit timeout overriding Job.Timeout.
// A timeout <= 0 means no per-job limit.
func (p *Pool) SubmitTimeout(job Job, timeout time.Duration) (*Future, error) {
	s := p.settings.Load()
	return p.submit(job, timeout, s.globalDeadline)
}

// SubmitWait submits a job and waits until it is done
func (p *Pool) SubmitWait(job Job) (*Future, error) {
	f, err := p.Submit(job)
	if err != nil {
		return nil, err
	}
	<-f.Done()
	return f, nil
}

func (p *Pool) submit(job Job, timeout time.Duration, globalDeadline time.Time) (*Future, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.metrics.recordRejected()
		return nil, ErrPoolStopped
	}

	f := newFuture(job, timeout, globalDeadline, p.queue, p.sink)
	f.onFinish = p.onFinish
	p.pending.Store(f, struct{}{})
	p.metrics.recordSubmitted()

	p.WorkerPool.Submit(p.wrap(f))
	return f, nil
}

// wrap generates the func that we pass to the worker pool
func (p *Pool) wrap(f *Future) func() {
	return func() {
		p.pending.Delete(f)
		p.metrics.workerBusy(1)
		defer p.metrics.workerBusy(-1)
		f.run()
	}
}

// getTimeout decides which timeout to use : default or job
func (p *Pool) getTimeout(job Job, s *settings) time.Duration {
	if job.Timeout != 0 {
		return job.Timeout
	}
	return s.defaultTimeout
}

func (p *Pool) onFinish(f *Future) {
	p.metrics.recordFinished(f)
	p.log.WithFields(logrus.Fields{
		"job":     f.Name(),
		"id":      f.ID(),
		"outcome": outcomeOf(f),
	}).Debug("job done")
}

func (p *Pool) onKeeperTimeout(e deadline.Entry) {
	if f, ok := e.(*Future); ok {
		p.log.WithFields(logrus.Fields{
			"job":     f.Name(),
			"id":      f.ID(),
			"timeout": f.Timeout(),
		}).Warn("job ran past its deadline and was timed out")
	}
}

// SetDefaultTimeout changes the timeout of jobs submitted later without one.
// Jobs already submitted keep theirs.
func (p *Pool) SetDefaultTimeout(d time.Duration) {
	p.updateSettings(func(s *settings) { s.defaultTimeout = d })
}

// DefaultTimeout returns the current default timeout; <= 0 means none
func (p *Pool) DefaultTimeout() time.Duration {
	return p.settings.Load().defaultTimeout
}

// SetGlobalDeadline sets the instant after which no job submitted from now on
// may run. Jobs already submitted keep the deadline they were created with.
func (p *Pool) SetGlobalDeadline(t time.Time) {
	p.updateSettings(func(s *settings) { s.globalDeadline = t })
}

// ResetGlobalDeadline removes the global deadline for jobs submitted later
func (p *Pool) ResetGlobalDeadline() {
	p.SetGlobalDeadline(time.Time{})
}

// HasGlobalDeadline reports whether a global deadline is set
func (p *Pool) HasGlobalDeadline() bool {
	return !p.settings.Load().globalDeadline.IsZero()
}

// GlobalDeadline returns the global deadline, zero if there is none
func (p *Pool) GlobalDeadline() time.Time {
	return p.settings.Load().globalDeadline
}

func (p *Pool) updateSettings(change func(*settings)) {
	for {
		old := p.settings.Load()
		next := *old
		change(&next)
		if p.settings.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Running returns the number of jobs currently running under a deadline
func (p *Pool) Running() int {
	return p.queue.Len()
}

// Stopped reports whether the pool refuses new jobs
func (p *Pool) Stopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

// StopWait stops accepting jobs, waits for every queued and running job to be
// done, then stops the deadline keeper. Queued jobs still get their own
// timeouts while they wait.
func (p *Pool) StopWait() {
	p.stop(false)
}

// Stop stops accepting jobs, times out every running job, and cancels jobs
// that are still queued. It waits for the workers to return, so a job that
// ignores its context keeps Stop waiting.
func (p *Pool) Stop() {
	p.stop(true)
}

// stop either stops the worker pool now or later
func (p *Pool) stop(now bool) {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		if now {
			p.keeper.Stop()
			p.WorkerPool.Stop()
			p.cancelPending()
		} else {
			p.WorkerPool.StopWait()
			p.keeper.Stop()
		}
		p.log.WithField("now", now).Debug("pool stopped")
		close(p.terminated)
	})
	<-p.terminated
}

// cancelPending cancels the futures the worker pool abandoned
func (p *Pool) cancelPending() {
	n := 0
	p.pending.Range(func(k, _ interface{}) bool {
		p.pending.Delete(k)
		if k.(*Future).Cancel() {
			n++
		}
		return true
	})
	if n > 0 {
		p.log.WithField("count", n).Info("cancelled queued jobs on stop")
	}
}

// AwaitTermination waits up to d for a stop to complete and reports whether
// it did
func (p *Pool) AwaitTermination(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.terminated:
		return true
	case <-t.C:
		return false
	}
}

// Terminated is closed once the pool and its deadline keeper have stopped
func (p *Pool) Terminated() <-chan struct{} {
	return p.terminated
}
