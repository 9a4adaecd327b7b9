package deadlinepool

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "deadlinepool"

// Outcome labels of the finished_total counter
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
	outcomeTimedOut  = "timed_out"
)

// metrics is nil when the pool has no registerer; every method is nil-safe.
type metrics struct {
	submitted    prometheus.Counter
	rejected     prometheus.Counter
	finished     *prometheus.CounterVec
	busyWorkers  prometheus.Gauge
	taskDuration prometheus.Histogram
}

func newMetrics(namespace string, reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	if namespace == "" {
		namespace = defaultNamespace
	}

	m := &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submitted_total",
			Help:      "Total number of jobs accepted by the pool.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Total number of jobs refused because the pool was stopped.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finished_total",
			Help:      "Total number of jobs done, by outcome.",
		}, []string{"outcome"}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Number of workers currently running a job.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from job start until it was done.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	var err error
	if m.submitted, err = registerCollector(reg, m.submitted); err != nil {
		return nil, err
	}
	if m.rejected, err = registerCollector(reg, m.rejected); err != nil {
		return nil, err
	}
	if m.finished, err = registerCollector(reg, m.finished); err != nil {
		return nil, err
	}
	if m.busyWorkers, err = registerCollector(reg, m.busyWorkers); err != nil {
		return nil, err
	}
	if m.taskDuration, err = registerCollector(reg, m.taskDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recordSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *metrics) recordRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *metrics) workerBusy(delta float64) {
	if m == nil {
		return
	}
	m.busyWorkers.Add(delta)
}

func (m *metrics) recordFinished(f *Future) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(outcomeOf(f)).Inc()
	if f.started.Load() != nil {
		m.taskDuration.Observe(f.runtimeDuration.Seconds())
	}
}

// outcomeOf must only be called on a done future
func outcomeOf(f *Future) string {
	switch {
	case f.IsTimedOut():
		return outcomeTimedOut
	case f.IsCancelled():
		return outcomeCancelled
	case f.err != nil:
		return outcomeFailed
	}
	return outcomeCompleted
}

func registerCollector[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		existing, ok := alreadyRegistered.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}
	return collector, err
}
