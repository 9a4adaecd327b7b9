package deadlinepool

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Options is common options
type Options struct {
	Logger           logrus.FieldLogger
	Sink             Sink
	Registerer       prometheus.Registerer
	MetricsNamespace string
	GlobalDeadline   time.Time
}

// NewOptions creates options with defaults.
func NewOptions(opts ...Option) Options {
	var options = Options{
		Logger:           discardLogger(),
		MetricsNamespace: defaultNamespace,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Option is for setting options.
type Option func(*Options)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithCompletionSink sets the sink every done Future is offered to
func WithCompletionSink(sink Sink) Option {
	return func(o *Options) {
		o.Sink = sink
	}
}

// WithRegisterer enables prometheus metrics, registered with reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// WithMetricsNamespace sets the namespace of the pool metrics. Empty is ignored.
func WithMetricsNamespace(ns string) Option {
	return func(o *Options) {
		if ns != "" {
			o.MetricsNamespace = ns
		}
	}
}

// WithGlobalDeadline sets the global deadline the pool starts with
func WithGlobalDeadline(t time.Time) Option {
	return func(o *Options) {
		o.GlobalDeadline = t
	}
}

// discardLogger writes nothing.
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
