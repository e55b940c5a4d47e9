package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mrdawstar/LinguaLab-sub000/core"
)

type Job func(ctx context.Context) error

// Runner runs jobs periodically until its context is cancelled.
type Runner struct {
	ctx    context.Context
	logger core.Logger
	wg     sync.WaitGroup
}

func New(ctx context.Context, logger core.Logger) *Runner {
	return &Runner{ctx: ctx, logger: logger}
}

// Every runs fn every interval. A run failure is logged and counted; the job keeps running.
// A non-positive interval disables the job.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	if interval <= 0 {
		r.logger.Warn("job disabled", map[string]interface{}{"job": name, "interval": interval.String()})
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.Run(name, fn)
			}
		}
	}()
}

// Run runs fn once, synchronously. A panicking job is recovered and counted as failed.
func (r *Runner) Run(name string, fn Job) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.fail(name, errors.Errorf("panic: %v", p))
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if err := fn(r.ctx); err != nil {
		r.fail(name, err)
	}
}

func (r *Runner) fail(name string, err error) {
	jobErrors.WithLabelValues(name).Inc()
	r.logger.Error("job failed", err, map[string]interface{}{"job": name})
}

// Wait blocks until every periodic job has stopped.
func (r *Runner) Wait() {
	r.wg.Wait()
}
