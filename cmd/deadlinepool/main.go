// Command deadlinepool runs a batch of sleeper jobs through a pool and reports
// which of them finished and which were timed out.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/oze4/deadlinepool"
	"github.com/oze4/deadlinepool/internal/sleeper"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not load .env")
	}

	app := &cli.App{
		Name:  "deadlinepool",
		Usage: "run sleeper jobs under per-job timeouts and a global deadline",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Value: 1, EnvVars: []string{"DLP_WORKERS"}},
			&cli.DurationFlag{Name: "timeout", Value: 100 * time.Millisecond, Usage: "default per-job timeout, 0 for none", EnvVars: []string{"DLP_TIMEOUT"}},
			&cli.DurationFlag{Name: "global-deadline", Usage: "global deadline measured from start, 0 for none", EnvVars: []string{"DLP_GLOBAL_DEADLINE"}},
			&cli.IntFlag{Name: "jobs", Value: 4, EnvVars: []string{"DLP_JOBS"}},
			&cli.DurationFlag{Name: "job-duration", Value: 50 * time.Millisecond, EnvVars: []string{"DLP_JOB_DURATION"}},
			&cli.BoolFlag{Name: "busy", Usage: "burn CPU instead of sleeping", EnvVars: []string{"DLP_BUSY"}},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve prometheus metrics on this address", EnvVars: []string{"DLP_METRICS_ADDR"}},
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"DLP_LOG_LEVEL"}},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("deadlinepool failed")
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)

	reg := prometheus.NewRegistry()
	opts := []deadlinepool.Option{
		deadlinepool.WithLogger(log),
		deadlinepool.WithRegisterer(reg),
	}
	if d := c.Duration("global-deadline"); d > 0 {
		opts = append(opts, deadlinepool.WithGlobalDeadline(time.Now().Add(d)))
	}

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	n := c.Int("jobs")
	sink := deadlinepool.NewChanSink(n)
	opts = append(opts, deadlinepool.WithCompletionSink(sink))
	wp := deadlinepool.New(c.Int("workers"), c.Duration("timeout"), opts...)

	for i := 0; i < n; i++ {
		job, err := newJob(i, c.Duration("job-duration"), c.Bool("busy"))
		if err != nil {
			return err
		}
		if _, err := wp.Submit(job); err != nil {
			return err
		}
	}

	completed, timedOut := 0, 0
	for i := 0; i < n; i++ {
		r := (<-sink).Response()
		entry := log.WithFields(logrus.Fields{
			"job":     r.Name(),
			"runtime": r.RuntimeDuration(),
		})
		switch {
		case r.TimedOut():
			timedOut++
			entry.Info("timed out")
		case r.Error != nil:
			entry.WithError(r.Error).Info("failed")
		default:
			completed++
			entry.WithField("value", r.Data).Info("completed")
		}
	}
	wp.StopWait()

	fmt.Printf("%d jobs: %d completed, %d timed out\n", n, completed, timedOut)
	return nil
}

func newJob(i int, d time.Duration, busy bool) (deadlinepool.Job, error) {
	name := fmt.Sprintf("job-%d", i)
	if busy {
		b, err := sleeper.NewBusySleeper(d)
		if err != nil {
			return deadlinepool.Job{}, err
		}
		return deadlinepool.Job{Name: name, Task: b.Run, Store: b}, nil
	}
	s := &sleeper.Sleeper{Delay: d, Value: i}
	return deadlinepool.Job{Name: name, Task: s.Run, Store: s}, nil
}
